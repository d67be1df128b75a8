// Package config loads the gateway configuration from YAML. The signing
// secret and listen address can be overridden from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/citygate/internal/gateway/rules"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Listen is the address to accept client traffic on (e.g. ":8080").
	Listen string `yaml:"listen"`

	// SecretKey verifies bearer tokens; it must match the auth service.
	SecretKey string `yaml:"secret_key"`

	// OpenPaths bypass token verification. Omitted means the login and
	// register endpoints.
	OpenPaths []rules.Rule `yaml:"open_paths"`

	Routes []RouteConfig `yaml:"routes"`

	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RouteConfig forwards every path under Prefix to Backend.
type RouteConfig struct {
	Prefix      string `yaml:"prefix"`
	Backend     string `yaml:"backend"`
	StripPrefix bool   `yaml:"strip_prefix"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format"` // json, text (default: json)
}

type envOverrides struct {
	SecretKey string `envconfig:"GATEWAY_SECRET_KEY"`
	Listen    string `envconfig:"GATEWAY_LISTEN"`
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.OpenPaths == nil {
		c.OpenPaths = rules.DefaultOpenPaths()
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return err
	}
	if env.SecretKey != "" {
		c.SecretKey = env.SecretKey
	}
	if env.Listen != "" {
		c.Listen = env.Listen
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen is required")
	}
	if c.SecretKey == "" {
		return errors.New("secret_key is required (or set GATEWAY_SECRET_KEY)")
	}
	if _, err := rules.NewTable(c.OpenPaths); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}

	seen := make(map[string]struct{}, len(c.Routes))
	for i, r := range c.Routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return fmt.Errorf("routes[%d].prefix %q must start with /", i, r.Prefix)
		}
		if _, dup := seen[r.Prefix]; dup {
			return fmt.Errorf("routes[%d].prefix %q is duplicated", i, r.Prefix)
		}
		seen[r.Prefix] = struct{}{}

		u, err := url.Parse(r.Backend)
		if err != nil {
			return fmt.Errorf("routes[%d].backend: %w", i, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("routes[%d].backend %q must be an absolute http(s) URL", i, r.Backend)
		}
	}
	return nil
}

// Parse decodes YAML, applies defaults and environment overrides, and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}
