package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jamestelfer/micropub-bridge/internal/config"
	"github.com/rs/zerolog/log"
)

// Server is the part of http.Server used to run the service.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// serveHTTP runs the server until it fails or a termination signal arrives,
// then shuts it down. In-flight requests are given
// ShutdownTimeoutSeconds to complete. A startup failure is returned after
// shutdown.
func serveHTTP(serverCfg config.ServerConfig, server Server) error {
	signalled, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", serverCfg.Port).Msg("starting server")
		listenErr <- server.ListenAndServe()
	}()

	var startupErr error

	select {
	case err := <-listenErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
		startupErr = err

	case <-signalled.Done():
		log.Info().Msg("server shutdown requested")
		// further signals terminate the process immediately
		stop()
	}

	shutdownTimeout := time.Duration(serverCfg.ShutdownTimeoutSeconds) * time.Second
	log.Info().Dur("timeout", shutdownTimeout).Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info().Msg("server shutdown complete")

	return startupErr
}
