package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

func ParseTokenReferences(data []byte) ([]TokenReference, error) {
	doc := TokenReferences{}
	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, err
	}

	refs := make([]TokenReference, 0, len(doc.References))
	for i, ref := range doc.References {
		ref = sanitizeReference(ref)

		if ref.Me == "" || ref.Endpoint == "" {
			return nil, fmt.Errorf("token reference %d: both me and endpoint are required", i)
		}

		refs = append(refs, ref)
	}

	return refs, nil
}

func sanitizeReference(ref TokenReference) TokenReference {
	return TokenReference{
		Me:       strings.TrimSpace(ref.Me),
		Endpoint: strings.TrimSpace(ref.Endpoint),
	}
}
