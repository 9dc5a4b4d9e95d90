package micropub

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jamestelfer/micropub-bridge/internal/indieauth"
)

// Kind classifies the failures that are reported to Micropub clients.
type Kind int

const (
	KindMissingCredential Kind = iota + 1
	KindInvalidCredential
	KindIdentityMismatch
	KindInsufficientScope
	KindVerificationUnavailable
	KindMissingHField
	KindNoProperties
	KindMalformedBody
	KindUnsupportedAction
	KindHandlerFailure
)

var kindNames = map[Kind]string{
	KindMissingCredential:       "missing_credential",
	KindInvalidCredential:       "invalid_credential",
	KindIdentityMismatch:        "identity_mismatch",
	KindInsufficientScope:       "insufficient_scope",
	KindVerificationUnavailable: "verification_unavailable",
	KindMissingHField:           "missing_h",
	KindNoProperties:            "no_properties",
	KindMalformedBody:           "malformed_body",
	KindUnsupportedAction:       "unsupported_action",
	KindHandlerFailure:          "handler_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// responses defines the status and client message of each kind. Malformed
// bodies and handler failures supply their own message.
var responses = map[Kind]struct {
	status  int
	message string
}{
	KindMissingCredential:       {http.StatusUnauthorized, `Missing "Authorization" header or body parameter.`},
	KindInvalidCredential:       {http.StatusForbidden, "Invalid token."},
	KindIdentityMismatch:        {http.StatusForbidden, "Token is not valid for this endpoint."},
	KindInsufficientScope:       {http.StatusForbidden, `Token is missing the "post" scope.`},
	KindVerificationUnavailable: {http.StatusBadGateway, "Token endpoint could not be reached."},
	KindMissingHField:           {http.StatusBadRequest, `Missing "h" value.`},
	KindNoProperties:            {http.StatusBadRequest, "No properties included in request."},
	KindMalformedBody:           {http.StatusBadRequest, "Invalid request body."},
	KindUnsupportedAction:       {http.StatusNotImplemented, "This endpoint does not yet support updates."},
	KindHandlerFailure:          {http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)},
}

// Error is a failure that is reported to the client. Message is sent as the
// response body; Err carries internal detail that is only logged.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, cause error) *Error {
	r := responses[kind]
	return &Error{
		Kind:    kind,
		Status:  r.status,
		Message: r.message,
		Err:     cause,
	}
}

func malformed(message string, cause error) *Error {
	e := newError(KindMalformedBody, cause)
	e.Message = message
	return e
}

// HandlerError allows a CreateHandler to choose the status and message of its
// failure response. Statuses outside the 4xx and 5xx ranges are reported as
// 500.
func HandlerError(status int, message string) error {
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	if message == "" {
		message = http.StatusText(status)
	}

	return &Error{
		Kind:    KindHandlerFailure,
		Status:  status,
		Message: message,
	}
}

// verificationError maps a verifier rejection onto its client-facing kind.
func verificationError(err error) *Error {
	switch {
	case errors.Is(err, indieauth.ErrIdentityMismatch):
		return newError(KindIdentityMismatch, err)
	case errors.Is(err, indieauth.ErrInsufficientScope):
		return newError(KindInsufficientScope, err)
	case errors.Is(err, indieauth.ErrInvalidToken):
		return newError(KindInvalidCredential, err)
	case errors.Is(err, indieauth.ErrUnavailable):
		return newError(KindVerificationUnavailable, err)
	default:
		// configuration failures: nothing the client can do about these
		return newError(KindHandlerFailure, err)
	}
}

// handlerFailure maps an error returned by the CreateHandler. Errors created
// by HandlerError keep their status; anything else is an internal error.
func handlerFailure(err error) *Error {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e
	}
	return newError(KindHandlerFailure, err)
}
