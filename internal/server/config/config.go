// Package config handles configuration for the auth service: defaults, a
// JSON file, environment variables and command-line flags, applied in that
// order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/citygate/internal/cryptox"
)

// MemoryDSN selects the in-memory credential store.
const MemoryDSN = "memory"

type Config struct {
	EndpointAddrHTTP      string        `envconfig:"AUTH_HTTP_ADDR"`
	EndpointAddrGRPC      string        `envconfig:"AUTH_GRPC_ADDR"`
	DatabaseDSN           string        `envconfig:"AUTH_DATABASE_DSN"`
	SecretKey             string        `envconfig:"AUTH_SECRET_KEY"`
	TokenValidityDuration time.Duration `envconfig:"AUTH_TOKEN_VALIDITY"`
	PasswordHashAlgorithm string        `envconfig:"AUTH_PASSWORD_HASH"`
	BcryptCost            int           `envconfig:"AUTH_BCRYPT_COST"`
	LoginRateLimit        int           `envconfig:"AUTH_LOGIN_RATE_LIMIT"`
	LogLevel              string        `envconfig:"AUTH_LOG_LEVEL"`
	LogFormat             string        `envconfig:"AUTH_LOG_FORMAT"`
}

// LoadDefaults fills everything except the secret, which has no safe default.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8081"
	c.EndpointAddrGRPC = ":9091"
	c.DatabaseDSN = MemoryDSN
	c.TokenValidityDuration = 10 * time.Hour
	c.PasswordHashAlgorithm = cryptox.AlgorithmBcrypt
	c.BcryptCost = 10
	c.LoginRateLimit = 20
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// UsesMemoryStore reports whether no database is configured.
func (c *Config) UsesMemoryStore() bool {
	dsn := strings.TrimSpace(c.DatabaseDSN)
	return dsn == "" || dsn == MemoryDSN
}

func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key must be set"))
	}
	if c.EndpointAddrHTTP == "" {
		errs = append(errs, errors.New("http address must be set"))
	}
	if c.TokenValidityDuration <= 0 {
		errs = append(errs, fmt.Errorf("token validity must be positive, got %s", c.TokenValidityDuration))
	}
	if c.LoginRateLimit < 0 {
		errs = append(errs, errors.New("login rate limit must not be negative"))
	}
	if _, err := cryptox.NewHasher(c.PasswordHashAlgorithm, c.BcryptCost); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then AUTH_* environment variables, then flags, and validates
// the result. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
