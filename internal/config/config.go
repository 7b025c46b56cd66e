package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	Upstream   UpstreamConfig   `mapstructure:"upstream" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// AllowedOrigins restricts websocket upgrades. Empty means same-origin only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthConfig selects how bearer tokens are verified. Exactly one of JWKSURL
// (hosted identity provider) or HMACSecret (local development) must be set.
type AuthConfig struct {
	JWKSURL    string `mapstructure:"jwks_url" validate:"required_without=HMACSecret,omitempty,url"`
	Issuer     string `mapstructure:"issuer"`
	Audience   string `mapstructure:"audience"`
	HMACSecret string `mapstructure:"hmac_secret" validate:"required_without=JWKSURL,omitempty,min=32"`
}

// UpstreamConfig points at the routine-task REST service.
type UpstreamConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" validate:"gt=0"`
}

// GenerationConfig tunes job monitoring and per-user sessions.
type GenerationConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gtfield=PollInterval"`
	CompletionDelay time.Duration `mapstructure:"completion_delay" validate:"gte=0"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"gtfield=Timeout"`
	ReapInterval    time.Duration `mapstructure:"reap_interval" validate:"gt=0"`
}

// DatabaseConfig is optional. Without a URL, run history is disabled.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
	// RunsPerUser caps stored history per user. Zero selects the store default.
	RunsPerUser int `mapstructure:"runs_per_user" validate:"gte=0"`
}

// HistoryEnabled reports whether run history should be persisted.
func (d DatabaseConfig) HistoryEnabled() bool {
	return d.URL != ""
}
