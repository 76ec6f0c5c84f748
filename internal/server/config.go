package server

import (
	env "github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	dotenv "github.com/apkfleet/apkfleet/internal/env"
)

// Config is the HTTP daemon configuration, loaded from environment
// variables after .env discovery.
type Config struct {
	// Addr is the listen address.
	Addr string `env:"APKFLEET_HTTP_ADDR" envDefault:":5000"`

	// LogDir is the directory install CSV logs are written to.
	LogDir string `env:"APKFLEET_LOG_DIR" envDefault:"."`

	// HistoryDB enables the sqlite run-history store when non-empty.
	HistoryDB string `env:"APKFLEET_HISTORY_DB" envDefault:""`

	// ShutdownGraceSeconds bounds how long an in-flight request may
	// block shutdown.
	ShutdownGraceSeconds int `env:"APKFLEET_SHUTDOWN_GRACE" envDefault:"10"`
}

// LoadConfig parses the daemon configuration from the environment.
func LoadConfig() (Config, error) {
	dotenv.Ensure()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse server config")
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from the environment.
func (c *Config) Sanitize() {
	if c.Addr == "" {
		c.Addr = ":5000"
	}
	if c.LogDir == "" {
		c.LogDir = "."
	}
	if c.ShutdownGraceSeconds < 0 {
		c.ShutdownGraceSeconds = 0
	}
}
