package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/layer-3/authrelay/core"
)

// Config is the daemon configuration.
type Config struct {
	Name            string            `yaml:"name"`
	ProjectID       string            `yaml:"project_id"`
	RedisURL        string            `yaml:"redis_url"`
	HTTPAddr        string            `yaml:"http_addr"`
	RPCURL          string            `yaml:"rpc_url"`
	LogLevel        string            `yaml:"log_level"`
	LogPretty       bool              `yaml:"log_pretty"`
	Metadata        core.Metadata     `yaml:"metadata"`
	RequestExpiry   core.ExpiryBounds `yaml:"request_expiry"`
	SessionTTL      time.Duration     `yaml:"session_ttl"`
	ExpirerInterval time.Duration     `yaml:"expirer_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Name:            "authrelay",
		RedisURL:        "redis://localhost:6379/0",
		HTTPAddr:        ":9000",
		LogLevel:        "info",
		RequestExpiry:   core.DefaultExpiryBounds,
		SessionTTL:      15 * time.Minute,
		ExpirerInterval: time.Second,
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"REDIS_URL":   &c.RedisURL,
		"PROJECT_ID":  &c.ProjectID,
		"HTTP_ADDR":   &c.HTTPAddr,
		"LOG_LEVEL":   &c.LogLevel,
		"RPC_URL":     &c.RPCURL,
		"CLIENT_NAME": &c.Name,
	}
	for env, field := range overrides {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks the fields the daemon cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.RequestExpiry.Min <= 0 || c.RequestExpiry.Max < c.RequestExpiry.Min {
		errs = append(errs, fmt.Errorf("request_expiry: invalid bounds %s..%s", c.RequestExpiry.Min, c.RequestExpiry.Max))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
