package config

import (
	"os"
)

func LoadTokenReferencesFromFile(path string) ([]TokenReference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTokenReferences(data)
}
