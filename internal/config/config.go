package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/celgate/celgate/internal/constants"
)

type Config struct {
	// JWKSURL is the endpoint the signing keys are fetched from.
	JWKSURL string `yaml:"jwks_url"`

	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string `yaml:"listen_address"`

	// RefreshSeconds is the background key-refresh tick interval.
	RefreshSeconds int `yaml:"refresh_seconds"`

	// TimeoutSeconds bounds outbound JWKS fetches.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	Debug bool `yaml:"debug"`
}

// RefreshInterval returns the background refresh tick as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}

// HTTPTimeout returns the outbound request timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate checks required fields and rejects unusable values.
func (c *Config) Validate() error {
	if c.JWKSURL == "" {
		return fmt.Errorf("jwks_url is required")
	}
	u, err := url.Parse(c.JWKSURL)
	if err != nil {
		return fmt.Errorf("invalid jwks_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("jwks_url must be an http(s) URL, got %q", c.JWKSURL)
	}
	if c.RefreshSeconds <= 0 {
		return fmt.Errorf("refresh_seconds must be positive")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	return nil
}

// LoadConfig reads a YAML config file into Config struct.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	// Set default values
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = constants.DefaultListenAddress
	}
	if cfg.RefreshSeconds == 0 {
		cfg.RefreshSeconds = constants.DefaultRefreshSeconds
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = constants.DefaultTimeoutSeconds
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
