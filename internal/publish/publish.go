package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jamestelfer/micropub-bridge/internal/config"
	"github.com/jamestelfer/micropub-bridge/internal/micropub"
	"github.com/rs/zerolog"
)

// maxMessageBytes limits how much of a rejection is relayed to the client.
const maxMessageBytes = 1024

const unavailableMessage = "Publishing service unavailable."

// Envelope is the payload sent to the publishing service.
type Envelope struct {
	Me       string            `json:"me"`
	ClientID string            `json:"client_id,omitempty"`
	Scope    []string          `json:"scope"`
	Document micropub.Document `json:"document"`
}

// Publisher relays created posts to a downstream publishing service.
type Publisher struct {
	client *http.Client
	url    string
	token  string
}

func New(cfg config.PublishConfig, client *http.Client) Publisher {
	if client == nil {
		client = http.DefaultClient
	}

	return Publisher{
		client: client,
		url:    cfg.URL,
		token:  cfg.Token,
	}
}

// Create implements micropub.CreateHandler.
func (p Publisher) Create(ctx context.Context, doc micropub.Document, req micropub.Request) (micropub.Result, error) {
	payload, err := json.Marshal(Envelope{
		Me:       req.Verification.Me,
		ClientID: req.Verification.ClientID,
		Scope:    req.Verification.Scopes,
		Document: doc,
	})
	if err != nil {
		return micropub.Result{}, fmt.Errorf("failed to marshal publish envelope: %w", err)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return micropub.Result{}, fmt.Errorf("failed to create publish request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json, text/plain")
	if p.token != "" {
		r.Header.Set("Authorization", "Bearer "+p.token)
	}

	res, err := p.client.Do(r)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("url", p.url).Msg("publish request failed")
		return micropub.Result{}, unavailable(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxMessageBytes))
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Int("status", res.StatusCode).Msg("could not read publishing service response")
	}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		location, err := res.Location()
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int("status", res.StatusCode).Msg("publishing service returned no location")
			return micropub.Result{}, unavailable(err)
		}
		return micropub.Result{URL: location.String()}, nil

	case credentialRejected(res.StatusCode):
		// the service's own credential was refused: nothing the client can fix
		zerolog.Ctx(ctx).Error().Int("status", res.StatusCode).Msg("publishing service refused credentials")
		return micropub.Result{}, unavailable(fmt.Errorf("publishing service responded %d", res.StatusCode))

	case res.StatusCode >= 400 && res.StatusCode < 500:
		message := rejectionMessage(res.Header.Get("Content-Type"), body)
		zerolog.Ctx(ctx).Info().Int("status", res.StatusCode).Str("message", message).Msg("publishing service rejected post")
		return micropub.Result{}, micropub.HandlerError(res.StatusCode, message)

	default:
		zerolog.Ctx(ctx).Error().Int("status", res.StatusCode).Msg("publishing service failed")
		return micropub.Result{}, unavailable(fmt.Errorf("publishing service responded %d", res.StatusCode))
	}
}

func credentialRejected(status int) bool {
	return status == http.StatusUnauthorized ||
		status == http.StatusForbidden ||
		status == http.StatusProxyAuthRequired
}

func unavailable(cause error) error {
	return fmt.Errorf("%w: %v", micropub.HandlerError(http.StatusBadGateway, unavailableMessage), cause)
}

// rejectionMessage extracts the client message from a downstream rejection.
// JSON bodies may carry it in error_description, message or error.
func rejectionMessage(contentType string, body []byte) string {
	if strings.Contains(contentType, "json") {
		var parsed struct {
			ErrorDescription string `json:"error_description"`
			Message          string `json:"message"`
			Error            string `json:"error"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil {
			for _, m := range []string{parsed.ErrorDescription, parsed.Message, parsed.Error} {
				if m = strings.TrimSpace(m); m != "" {
					return m
				}
			}
		}
	}

	if message := strings.TrimSpace(string(body)); message != "" && !strings.Contains(contentType, "json") {
		return message
	}

	return "The publishing service rejected the post."
}
