package micropub_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jamestelfer/micropub-bridge/internal/audit"
	"github.com/jamestelfer/micropub-bridge/internal/micropub"
	"github.com/stretchr/testify/assert"
)

func TestAuditor(t *testing.T) {
	cases := []struct {
		name     string
		result   micropub.Result
		err      error
		location string
		message  string
	}{
		{
			name:     "success",
			result:   micropub.Result{URL: createdPost},
			location: createdPost,
		},
		{
			name:    "failure",
			err:     errors.New("downstream failed"),
			message: "create failure: downstream failed",
		},
		{
			name:    "no location",
			message: "create failure: no location returned",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			handler := micropub.Auditor(func(ctx context.Context, doc micropub.Document, req micropub.Request) (micropub.Result, error) {
				return c.result, c.err
			})

			ctx, entry := audit.Context(context.Background())

			result, err := handler(ctx, micropub.Document{}, micropub.Request{})

			assert.Equal(t, c.result, result)
			assert.Equal(t, c.err, err)
			assert.Equal(t, c.location, entry.Location)
			assert.Equal(t, c.message, entry.Error)
		})
	}
}
