package indieauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/rs/zerolog"
)

// Scopes that grant the capability to create content. "post" is the legacy
// Micropub scope; "create" is its replacement.
var createScopes = []string{"post", "create"}

// maxResponseBytes limits the amount of a verification response that is
// read.
const maxResponseBytes = 64 << 10

var (
	// ErrInvalidToken indicates that the endpoint rejected the token, or
	// responded with something other than a verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrIdentityMismatch indicates that the token is valid, but was issued to
	// an identity this endpoint does not accept.
	ErrIdentityMismatch = errors.New("identity mismatch")

	// ErrInsufficientScope indicates that the token does not grant the
	// create capability.
	ErrInsufficientScope = errors.New("insufficient scope")

	// ErrUnavailable indicates that the token endpoint could not be reached.
	// Unlike the other errors, this is not a judgement on the token.
	ErrUnavailable = errors.New("verification unavailable")

	// ErrNoReferences is returned when there are no token references to
	// verify against.
	ErrNoReferences = errors.New("no token references configured")

	// ErrInvalidReference is returned when a token reference names an
	// endpoint that is not a usable URL.
	ErrInvalidReference = errors.New("invalid token reference")
)

// Verification is the result of a successful token check.
type Verification struct {
	Me       string
	Scopes   []string
	ClientID string
	IssuedBy string
	Endpoint string
}

// HasScope reports whether the verified token was granted the given scope.
func (v Verification) HasScope(scope string) bool {
	return slices.Contains(v.Scopes, scope)
}

// VerifyFunc checks a bearer token against the supplied references.
type VerifyFunc func(ctx context.Context, token string, refs []TokenReference) (*Verification, error)

type Verifier struct {
	client    *http.Client
	userAgent string
}

// NewVerifier creates a verifier that uses the given client to call token
// endpoints, identifying itself with userAgent.
func NewVerifier(client *http.Client, userAgent string) *Verifier {
	if client == nil {
		client = http.DefaultClient
	}

	return &Verifier{
		client:    client,
		userAgent: userAgent,
	}
}

// Verify checks the token with each distinct endpoint named by the references
// in turn. The first endpoint that accepts the token for one of its
// identities ends the search. If none do, the rejection from the first
// endpoint is returned.
func (v *Verifier) Verify(ctx context.Context, token string, refs []TokenReference) (*Verification, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	endpoints := groupByEndpoint(refs)
	if len(endpoints) == 0 {
		return nil, ErrNoReferences
	}

	var firstErr error

	for _, e := range endpoints {
		verification, err := v.check(ctx, token, e)
		if err == nil {
			return verification, nil
		}

		zerolog.Ctx(ctx).Info().
			Err(err).
			Str("endpoint", e.endpoint).
			Msg("token rejected by endpoint")

		if firstErr == nil {
			firstErr = err
		}
	}

	return nil, firstErr
}

func (v *Verifier) check(ctx context.Context, token string, e endpointIdentities) (*Verification, error) {
	endpoint, err := url.Parse(e.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint %q: %v", ErrInvalidReference, e.endpoint, err)
	}
	if (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return nil, fmt.Errorf("%w: endpoint %q is not an absolute http(s) URL", ErrInvalidReference, e.endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint %q: %v", ErrInvalidReference, e.endpoint, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/x-www-form-urlencoded, application/json;q=0.9")
	req.Header.Set("User-Agent", v.userAgent)

	res, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response from %s: %v", ErrUnavailable, e.endpoint, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: endpoint responded with status %d", ErrInvalidToken, res.StatusCode)
	}

	tokenRes, err := parseTokenResponse(res.Header.Get("Content-Type"), body)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable verification response: %v", ErrInvalidToken, err)
	}

	if tokenRes.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidToken, tokenRes.Error, tokenRes.ErrorDescription)
	}

	if tokenRes.Me == "" {
		return nil, fmt.Errorf("%w: verification response has no identity", ErrInvalidToken)
	}

	// identity is checked before scope: a token for someone else is rejected
	// as such, whatever it grants
	matched := slices.ContainsFunc(e.identities, func(me string) bool {
		return SameIdentity(me, tokenRes.Me)
	})
	if !matched {
		return nil, fmt.Errorf("%w: token issued to %s", ErrIdentityMismatch, tokenRes.Me)
	}

	if !slices.ContainsFunc(createScopes, tokenRes.Scope.Contains) {
		return nil, fmt.Errorf("%w: granted scopes %v", ErrInsufficientScope, []string(tokenRes.Scope))
	}

	return &Verification{
		Me:       tokenRes.Me,
		Scopes:   tokenRes.Scope,
		ClientID: tokenRes.ClientID,
		IssuedBy: tokenRes.IssuedBy,
		Endpoint: e.endpoint,
	}, nil
}
