package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/jamestelfer/micropub-bridge"

// Outcome recorded for Micropub requests that created a post.
const OutcomeCreated = "created"

// RequestCounter counts Micropub requests by their outcome.
type RequestCounter struct {
	counter metric.Int64Counter
}

// NewRequestCounter creates the counter from the global meter provider. If
// telemetry is configured after this is called, the global provider
// delegates to the configured one.
func NewRequestCounter() (*RequestCounter, error) {
	return newRequestCounter(otel.GetMeterProvider())
}

func newRequestCounter(provider metric.MeterProvider) (*RequestCounter, error) {
	counter, err := provider.Meter(instrumentationName).Int64Counter(
		"micropub.requests",
		metric.WithDescription("Micropub create requests, by outcome."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &RequestCounter{counter: counter}, nil
}

// Record counts a single request with the given outcome: OutcomeCreated, or
// the kind of failure that ended the request.
func (c *RequestCounter) Record(ctx context.Context, outcome string) {
	if c == nil {
		return
	}
	c.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
