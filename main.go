package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jamestelfer/micropub-bridge/internal/audit"
	"github.com/jamestelfer/micropub-bridge/internal/config"
	"github.com/jamestelfer/micropub-bridge/internal/indieauth"
	"github.com/jamestelfer/micropub-bridge/internal/micropub"
	"github.com/jamestelfer/micropub-bridge/internal/observe"
	"github.com/jamestelfer/micropub-bridge/internal/publish"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/justinas/alice"
)

func configureServerRoutes(ctx context.Context, cfg config.Config) (http.Handler, error) {
	// wrap a mux such that HTTP telemetry is configured by default
	muxWithoutTelemetry := http.NewServeMux()
	mux := observe.NewMux(muxWithoutTelemetry, "micropub-bridge")

	// configure middleware
	auditor := audit.Middleware()

	// Multipart file parts are discarded, so the body limit need only allow
	// for the text of a post.
	requestLimiter := maxRequestSize(cfg.Server.RequestLimitBytes)

	micropubMiddleware := alice.New(requestLimiter, auditor)

	// setup the endpoint and its dependencies
	verificationCache, err := indieauth.Cached(time.Duration(cfg.Authorization.CacheTTLSeconds) * time.Second)
	if err != nil {
		return nil, fmt.Errorf("verification cache configuration failed: %w", err)
	}

	verifier := indieauth.NewVerifier(http.DefaultClient, indieauth.UserAgent(cfg.Authorization.UserAgent))

	requests, err := observe.NewRequestCounter()
	if err != nil {
		return nil, fmt.Errorf("request counter configuration failed: %w", err)
	}

	// references are read at startup so that a broken configuration fails
	// fast rather than on the first request
	tokens := indieauth.SourceFromConfig(cfg.Authorization)
	refs, err := tokens.References(ctx)
	if err != nil {
		return nil, fmt.Errorf("token reference configuration failed: %w", err)
	}

	log.Info().
		Int("references", len(refs)).
		Int("cacheTTLSeconds", cfg.Authorization.CacheTTLSeconds).
		Str("publishURL", cfg.Publish.URL).
		Msg("micropub endpoint configured")

	publisher := publish.New(cfg.Publish, http.DefaultClient)

	endpoint := micropub.New(
		micropub.Auditor(publisher.Create),
		tokens,
		micropub.WithVerifier(verificationCache(verifier.Verify)),
		micropub.WithRequestCounter(requests),
	)

	// registered without a method so that other methods are refused by the
	// endpoint itself
	mux.Handle("/micropub", micropubMiddleware.Then(endpoint))

	// healthchecks are not included in telemetry
	muxWithoutTelemetry.Handle("GET /healthcheck", handleHealthCheck())

	return mux, nil
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()

	cfg, err := config.Load(context.Background())
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// configure telemetry, including wrapping default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}

	http.DefaultTransport = observe.HttpTransport(
		configureHttpTransport(cfg.Server),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	// setup routing and dependencies
	handler, err := configureServerRoutes(ctx, cfg)
	if err != nil {
		return fmt.Errorf("server routing configuration failed: %w", err)
	}

	// start the server
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        handler,
		MaxHeaderBytes: 20 << 10, // 20 KB
	}

	server.RegisterOnShutdown(func() {
		log.Info().Msg("telemetry: shutting down")
		shutdownTelemetry(ctx)
		log.Info().Msg("telemetry: shutdown complete")
	})

	err = serveHTTP(cfg.Server, server)
	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHttpTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHttpMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHttpMaxConnsPerHost

	return transport
}
