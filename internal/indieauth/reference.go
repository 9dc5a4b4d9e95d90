package indieauth

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jamestelfer/micropub-bridge/internal/config"
)

// TokenReference pairs an identity URL ("me") with the token endpoint that is
// authoritative for tokens issued to that identity.
type TokenReference struct {
	Me       string
	Endpoint string
}

// TokenSource supplies the token references used to verify a request. It is
// resolved once per request.
type TokenSource interface {
	References(ctx context.Context) ([]TokenReference, error)
}

// StaticReferences is a TokenSource with a fixed set of references.
type StaticReferences []TokenReference

func (s StaticReferences) References(context.Context) ([]TokenReference, error) {
	return slices.Clone(s), nil
}

// DynamicReferences is a TokenSource that is evaluated on every request,
// allowing the set of accepted identities to vary at runtime.
type DynamicReferences func(ctx context.Context) ([]TokenReference, error)

func (f DynamicReferences) References(ctx context.Context) ([]TokenReference, error) {
	return f(ctx)
}

// FileReferences reads the references from a YAML file each time they are
// resolved.
func FileReferences(path string) DynamicReferences {
	return func(ctx context.Context) ([]TokenReference, error) {
		loaded, err := config.LoadTokenReferencesFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not load token references from %s: %w", path, err)
		}

		refs := make([]TokenReference, 0, len(loaded))
		for _, ref := range loaded {
			refs = append(refs, TokenReference{Me: ref.Me, Endpoint: ref.Endpoint})
		}

		return refs, nil
	}
}

// SourceFromConfig creates the TokenSource described by the authorization
// configuration. When both a static identity and a references file are
// configured, the static reference is checked first.
func SourceFromConfig(cfg config.AuthorizationConfig) TokenSource {
	var static StaticReferences
	if cfg.Me != "" {
		static = StaticReferences{{Me: cfg.Me, Endpoint: cfg.TokenEndpoint}}
	}

	if cfg.TokenReferencesFile == "" {
		return static
	}

	fromFile := FileReferences(cfg.TokenReferencesFile)

	return DynamicReferences(func(ctx context.Context) ([]TokenReference, error) {
		refs, err := fromFile(ctx)
		if err != nil {
			return nil, err
		}

		return append(slices.Clone(static), refs...), nil
	})
}

// SameIdentity compares two identity URLs, ignoring trailing slashes.
func SameIdentity(a, b string) bool {
	return normalizeIdentity(a) == normalizeIdentity(b)
}

func normalizeIdentity(me string) string {
	return strings.TrimRight(strings.TrimSpace(me), "/")
}

// endpointIdentities is the set of identities that a single token endpoint
// can vouch for.
type endpointIdentities struct {
	endpoint   string
	identities []string
}

// groupByEndpoint deduplicates references by endpoint, preserving the order
// in which each endpoint first appears.
func groupByEndpoint(refs []TokenReference) []endpointIdentities {
	grouped := []endpointIdentities{}

	for _, ref := range refs {
		i := slices.IndexFunc(grouped, func(e endpointIdentities) bool {
			return e.endpoint == ref.Endpoint
		})
		if i < 0 {
			grouped = append(grouped, endpointIdentities{endpoint: ref.Endpoint})
			i = len(grouped) - 1
		}

		grouped[i].identities = append(grouped[i].identities, ref.Me)
	}

	return grouped
}
