package testhelpers

import (
	"bytes"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger routes the global and context loggers to the test output for
// the duration of the test.
func SetupLogger(t *testing.T) {
	t.Helper()

	setupLogger(t, zerolog.NewTestWriter(t))
}

// CaptureLogs behaves like SetupLogger, and also returns a buffer holding
// the JSON log output so tests can assert on what was (or was not) logged.
func CaptureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	buf := &bytes.Buffer{}
	setupLogger(t, zerolog.MultiLevelWriter(zerolog.NewTestWriter(t), buf))

	return buf
}

func setupLogger(t *testing.T, w io.Writer) {
	// capture the current global logger so it can be restored on test completion.
	globalLogger := log.Logger
	t.Cleanup(func() {
		log.Logger = globalLogger
		zerolog.DefaultContextLogger = nil
	})

	log.Logger = log.
		Output(w).
		Level(zerolog.DebugLevel)

	// unless set, the context logger will not log anything
	zerolog.DefaultContextLogger = &log.Logger
}
