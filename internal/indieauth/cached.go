package indieauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"time"

	"github.com/maypok86/otter"
	"github.com/rs/zerolog"
)

// Cached supplies a decorator that remembers successful verifications for the
// given TTL. Rejections are never cached. A TTL of zero or less disables
// caching: every request then results in a call to the token endpoint.
//
// Like the verifications themselves, the cache is non-locking: concurrent
// requests with the same token may each call the endpoint, and the last
// result written wins.
func Cached(ttl time.Duration) (func(VerifyFunc) VerifyFunc, error) {
	if ttl <= 0 {
		return func(v VerifyFunc) VerifyFunc { return v }, nil
	}

	cache, err := otter.
		MustBuilder[string, Verification](10_000).
		CollectStats().
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	return func(v VerifyFunc) VerifyFunc {
		return func(ctx context.Context, token string, refs []TokenReference) (*Verification, error) {
			key := cacheKey(token, refs)

			if cached, ok := cache.Get(key); ok {
				zerolog.Ctx(ctx).Debug().
					Str("me", cached.Me).
					Str("endpoint", cached.Endpoint).
					Msg("hit: existing verification found for token")

				return &cached, nil
			}

			verification, err := v(ctx, token, refs)
			if err != nil {
				return nil, err
			}

			cache.Set(key, *verification)

			return verification, nil
		}
	}, nil
}

// cacheKey identifies a token together with the references it was checked
// against, so that a change to the accepted identities is not masked by an
// earlier result. The token itself is hashed rather than held as a key.
func cacheKey(token string, refs []TokenReference) string {
	pairs := make([]string, 0, len(refs))
	for _, ref := range refs {
		pairs = append(pairs, normalizeIdentity(ref.Me)+"\x1f"+ref.Endpoint)
	}
	slices.Sort(pairs)
	pairs = slices.Compact(pairs)

	h := sha256.New()
	h.Write([]byte(token))
	for _, p := range pairs {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}

	return hex.EncodeToString(h.Sum(nil))
}
