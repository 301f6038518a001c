package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config describes all runtime settings for the server. It is loaded
// once in main, validated, and passed down explicitly. Game pacing is
// not server configuration: the engine runs on the host device, which
// sets its night-action timeout through host.Options.
type Config struct {
	Env string // dev|prod

	HTTP struct {
		Addr              string
		ReadHeaderTimeout time.Duration
		ShutdownTimeout   time.Duration
	}

	// PublicBaseURL is the address players reach the server on; join
	// links and QR codes are built from it.
	PublicBaseURL string

	Session struct {
		SweepInterval time.Duration
	}
}

func LoadFromEnv() (Config, error) {
	var c Config

	c.Env = envString("APP_ENV", "dev")

	port := envString("PORT", "8080")
	c.HTTP.Addr = envString("HTTP_ADDR", ":"+port)
	c.HTTP.ReadHeaderTimeout = envDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second)
	c.HTTP.ShutdownTimeout = envDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)

	c.PublicBaseURL = envString("PUBLIC_BASE_URL", "http://localhost:"+port)

	c.Session.SweepInterval = envDuration("SESSION_SWEEP_INTERVAL", 60*time.Second)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP addr is empty")
	}
	if c.PublicBaseURL == "" {
		return errors.New("PUBLIC_BASE_URL is empty")
	}
	if c.Env != "dev" && c.Env != "prod" {
		return fmt.Errorf("unsupported APP_ENV=%q (want dev|prod)", c.Env)
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("SESSION_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
