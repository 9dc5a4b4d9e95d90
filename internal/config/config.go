package config

import (
	"context"
	"errors"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Authorization AuthorizationConfig
	Publish       PublishConfig
	Server        ServerConfig
	Observe       ObserveConfig
}

type ServerConfig struct {
	Port                   int `env:"PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	// RequestLimitBytes caps the size of an incoming Micropub request body.
	// Multipart file parts are not used, so this need not allow for media.
	RequestLimitBytes int64 `env:"SERVER_REQUEST_LIMIT_BYTES, default=2097152"`

	OutgoingHttpMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHttpMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
}

type AuthorizationConfig struct {
	// Me is the identity URL that tokens must be issued for. Paired with
	// TokenEndpoint to create a single static token reference.
	Me            string `env:"MICROPUB_ME"`
	TokenEndpoint string `env:"MICROPUB_TOKEN_ENDPOINT, default=https://tokens.indieauth.com/token"`

	// TokenReferencesFile names a YAML file of identity/endpoint pairs. It is
	// read on every request, so identities can be changed without a restart.
	TokenReferencesFile string `env:"MICROPUB_TOKEN_REFERENCES_FILE"`

	// UserAgent is prepended to the client signature sent to token endpoints.
	UserAgent string `env:"MICROPUB_USER_AGENT"`

	CacheTTLSeconds int `env:"MICROPUB_TOKEN_CACHE_TTL_SECS, default=0"`
}

type PublishConfig struct {
	URL   string `env:"PUBLISH_URL, required"`
	Token string `env:"PUBLISH_TOKEN"`
}

type ObserveConfig struct {
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=micropub-bridge"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HttpTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HttpConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (cfg Config, err error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (cfg Config, err error) {
	err = envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return
	}

	err = cfg.Authorization.validate()
	return
}

func (c AuthorizationConfig) validate() error {
	if c.Me == "" && c.TokenReferencesFile == "" {
		return errors.New("authorization requires MICROPUB_ME or MICROPUB_TOKEN_REFERENCES_FILE to be set")
	}

	if c.Me != "" && c.TokenEndpoint == "" {
		return errors.New("MICROPUB_TOKEN_ENDPOINT must be set when MICROPUB_ME is supplied")
	}

	return nil
}
