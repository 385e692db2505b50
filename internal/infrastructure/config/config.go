package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Sidecar   SidecarConfig
	Readiness ReadinessConfig
	Storage   StorageConfig
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// SidecarConfig describes how the backend process is found and started.
type SidecarConfig struct {
	// Mode overrides the build profile when set ("development" or "production").
	Mode        string        `envconfig:"SIDECAR_MODE"`
	Name        string        `envconfig:"SIDECAR_NAME" default:"flask_sidecar"`
	Script      string        `envconfig:"SIDECAR_SCRIPT" default:"pyserver/app.py"`
	ProjectDir  string        `envconfig:"SIDECAR_PROJECT_DIR" default:"."`
	BundleDir   string        `envconfig:"SIDECAR_BUNDLE_DIR"`
	Host        string        `envconfig:"SIDECAR_HOST" default:"127.0.0.1"`
	Port        int           `envconfig:"FLASK_PORT" default:"5005"`
	GracePeriod time.Duration `envconfig:"SIDECAR_GRACE_PERIOD" default:"5s"`
	HealthPath  string        `envconfig:"SIDECAR_HEALTH_PATH" default:"/health"`
	TailLines   int           `envconfig:"SIDECAR_TAIL_LINES" default:"500"`

	// HealthRetries is how often the health proxy retries a 5xx or refused
	// connection before reporting failure.
	HealthRetries int `envconfig:"SIDECAR_HEALTH_RETRIES" default:"1"`
}

// ReadinessConfig bounds the post-launch health probe.
type ReadinessConfig struct {
	Enabled    bool          `envconfig:"SIDECAR_READY_ENABLED" default:"true"`
	Required   bool          `envconfig:"SIDECAR_READY_REQUIRED" default:"false"`
	Timeout    time.Duration `envconfig:"SIDECAR_READY_TIMEOUT" default:"15s"`
	MinBackoff time.Duration `envconfig:"SIDECAR_READY_MIN_BACKOFF" default:"100ms"`
	MaxBackoff time.Duration `envconfig:"SIDECAR_READY_MAX_BACKOFF" default:"2s"`
}

// StorageConfig holds the application data directory.
type StorageConfig struct {
	// DataDir is resolved against the user config dir when empty.
	DataDir string `envconfig:"APP_DATA_DIR"`
}

// ServerConfig holds the loopback control server configuration.
type ServerConfig struct {
	Port    string `envconfig:"CONTROL_PORT" default:"5010"`
	Host    string `envconfig:"CONTROL_HOST" default:"127.0.0.1"`
	Enabled bool   `envconfig:"CONTROL_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is empty unless set; the logger then picks debug in development
	// and info otherwise.
	Level       string `envconfig:"LOG_LEVEL"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SidecarAddr returns host:port of the sidecar's HTTP listener.
func (c *Config) SidecarAddr() string {
	return fmt.Sprintf("%s:%d", c.Sidecar.Host, c.Sidecar.Port)
}

// SidecarURL returns the base URL of the sidecar.
func (c *Config) SidecarURL() string {
	return "http://" + c.SidecarAddr()
}

// ControlAddr returns host:port of the control server.
func (c *Config) ControlAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Validate rejects values that would make the supervisor misbehave.
func (c *Config) Validate() error {
	if c.Sidecar.Port <= 0 || c.Sidecar.Port > 65535 {
		return fmt.Errorf("invalid FLASK_PORT %d", c.Sidecar.Port)
	}
	if c.Sidecar.GracePeriod <= 0 {
		return fmt.Errorf("SIDECAR_GRACE_PERIOD must be positive, got %s", c.Sidecar.GracePeriod)
	}
	if c.Sidecar.HealthRetries < 0 {
		return fmt.Errorf("SIDECAR_HEALTH_RETRIES must not be negative, got %d", c.Sidecar.HealthRetries)
	}
	if c.Readiness.Enabled && c.Readiness.Timeout <= 0 {
		return fmt.Errorf("SIDECAR_READY_TIMEOUT must be positive, got %s", c.Readiness.Timeout)
	}
	if c.Readiness.MinBackoff > c.Readiness.MaxBackoff {
		return fmt.Errorf("SIDECAR_READY_MIN_BACKOFF %s exceeds max %s", c.Readiness.MinBackoff, c.Readiness.MaxBackoff)
	}
	return nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Sidecar: SidecarConfig{
			Name:        "flask_sidecar",
			Script:      "pyserver/app.py",
			ProjectDir:  ".",
			Host:        "127.0.0.1",
			Port:        5005,
			GracePeriod: 5 * time.Second,
			HealthPath:  "/health",
			TailLines:   500,

			HealthRetries: 1,
		},
		Readiness: ReadinessConfig{
			Enabled:    true,
			Required:   false,
			Timeout:    15 * time.Second,
			MinBackoff: 100 * time.Millisecond,
			MaxBackoff: 2 * time.Second,
		},
		Server: ServerConfig{
			Port:    "5010",
			Host:    "127.0.0.1",
			Enabled: true,
		},
		Logging: LogConfig{
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
