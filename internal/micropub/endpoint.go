package micropub

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/jamestelfer/micropub-bridge/internal/audit"
	"github.com/jamestelfer/micropub-bridge/internal/indieauth"
	"github.com/jamestelfer/micropub-bridge/internal/observe"
	"github.com/rs/zerolog"
)

// defaultMaxMemory is the amount of a multipart body held in memory.
const defaultMaxMemory = 1 << 20

// Result is the outcome of a successful create.
type Result struct {
	// URL is the location of the created post.
	URL string
}

// Request describes the verified request that a document was received on.
type Request struct {
	Verification indieauth.Verification
	HTTP         *http.Request
}

// CreateHandler creates a post from the canonical document. To control the
// failure response, return an error created by HandlerError.
type CreateHandler func(ctx context.Context, doc Document, req Request) (Result, error)

// Endpoint is an http.Handler implementing Micropub post creation.
type Endpoint struct {
	handler   CreateHandler
	tokens    indieauth.TokenSource
	verify    indieauth.VerifyFunc
	client    *http.Client
	userAgent string
	maxMemory int64
	requests  *observe.RequestCounter
}

type Option func(*Endpoint)

// WithVerifier replaces the verifier used to check tokens.
func WithVerifier(verify indieauth.VerifyFunc) Option {
	return func(e *Endpoint) {
		e.verify = verify
	}
}

// WithHTTPClient sets the client used to call token endpoints by the default
// verifier.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Endpoint) {
		e.client = client
	}
}

// WithUserAgent sets the product token that precedes this service's own in
// the client signature of the default verifier.
func WithUserAgent(userAgent string) Option {
	return func(e *Endpoint) {
		e.userAgent = userAgent
	}
}

// WithMaxMemory sets the amount of a multipart body held in memory.
func WithMaxMemory(bytes int64) Option {
	return func(e *Endpoint) {
		e.maxMemory = bytes
	}
}

// WithRequestCounter records the outcome of each request.
func WithRequestCounter(counter *observe.RequestCounter) Option {
	return func(e *Endpoint) {
		e.requests = counter
	}
}

// New creates the Micropub endpoint. Tokens are verified against the
// references supplied by tokens, and created posts are passed to handler.
func New(handler CreateHandler, tokens indieauth.TokenSource, opts ...Option) *Endpoint {
	e := &Endpoint{
		handler:   handler,
		tokens:    tokens,
		maxMemory: defaultMaxMemory,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.verify == nil {
		e.verify = indieauth.NewVerifier(e.client, indieauth.UserAgent(e.userAgent)).Verify
	}

	return e
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Ensure that the request body is fully read prior to returning. This
	// avoids issues with blocked connections and connection reuse.
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	ctx := r.Context()
	entry := audit.Log(ctx)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeText(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}

	token := headerToken(r)

	// The body is only decoded before verification when it must be searched
	// for the credential. Decoding failures are held until the token has been
	// verified: authorization failures take precedence.
	var body Body
	var decodeErr error
	decoded := false

	if token == "" {
		body, decodeErr = Decode(r, e.maxMemory)
		decoded = true
		if decodeErr == nil {
			token = body.AccessToken()
		}
	}

	if token == "" {
		e.fail(ctx, w, newError(KindMissingCredential, nil))
		return
	}

	verification, err := e.authorize(ctx, token)
	if err != nil {
		e.fail(ctx, w, err)
		return
	}

	entry.Authorized = true
	entry.AuthSubject = verification.Me
	entry.AuthClientID = verification.ClientID
	entry.AuthEndpoint = verification.Endpoint
	entry.AuthScopes = verification.Scopes

	if !decoded {
		body, decodeErr = Decode(r, e.maxMemory)
	}
	if decodeErr != nil {
		e.fail(ctx, w, decodeErr)
		return
	}

	doc, err := Normalize(body)
	if err != nil {
		e.fail(ctx, w, err)
		return
	}

	entry.PostType = doc.postType()
	entry.Commands = commandNames(doc)

	result, err := e.handler(ctx, doc, Request{
		Verification: *verification,
		HTTP:         r,
	})
	if err != nil {
		e.fail(ctx, w, handlerFailure(err))
		return
	}

	if result.URL == "" {
		e.fail(ctx, w, handlerFailure(errors.New("handler returned no location for the created post")))
		return
	}

	e.requests.Record(ctx, observe.OutcomeCreated)

	w.Header().Set("Location", result.URL)
	w.WriteHeader(http.StatusCreated)
}

func (e *Endpoint) authorize(ctx context.Context, token string) (*indieauth.Verification, error) {
	refs, err := e.tokens.References(ctx)
	if err != nil {
		return nil, newError(KindHandlerFailure, err)
	}

	verification, err := e.verify(ctx, token, refs)
	if err != nil {
		return nil, verificationError(err)
	}

	return verification, nil
}

// fail writes the response for err, which is expected to be an *Error.
func (e *Endpoint) fail(ctx context.Context, w http.ResponseWriter, err error) {
	var failure *Error
	if !errors.As(err, &failure) {
		failure = newError(KindHandlerFailure, err)
	}

	// a more detailed error may already have been recorded
	if entry := audit.Log(ctx); entry.Error == "" {
		entry.Error = failure.Error()
	}
	e.requests.Record(ctx, failure.Kind.String())

	ev := zerolog.Ctx(ctx).Info()
	if failure.Status >= http.StatusInternalServerError {
		ev = zerolog.Ctx(ctx).Error()
	}
	ev.Err(failure).Int("status", failure.Status).Msg("micropub request failed")

	if failure.Kind == KindMissingCredential {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	writeText(w, failure.Status, failure.Message)
}

// headerToken returns the bearer token from the Authorization header. A
// header with any other scheme is not a credential.
func headerToken(r *http.Request) string {
	token, err := jwtmiddleware.AuthHeaderTokenExtractor(r)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("ignoring Authorization header")
		return ""
	}
	return token
}

func commandNames(doc Document) []string {
	names := make([]string, 0, len(doc.MP))
	for name := range doc.MP {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}
