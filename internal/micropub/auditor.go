package micropub

import (
	"context"
	"fmt"

	"github.com/jamestelfer/micropub-bridge/internal/audit"
)

// Auditor wraps a CreateHandler and records the result of creating the post to
// the audit log.
func Auditor(handler CreateHandler) CreateHandler {
	return func(ctx context.Context, doc Document, req Request) (Result, error) {
		result, err := handler(ctx, doc, req)

		entry := audit.Log(ctx)
		if err != nil {
			entry.Error = fmt.Sprintf("create failure: %v", err)
		} else if result.URL == "" {
			entry.Error = "create failure: no location returned"
		} else {
			entry.Location = result.URL
		}

		return result, err
	}
}
