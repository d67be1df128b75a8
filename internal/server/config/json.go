package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/citygate/internal/flagx"
	"github.com/dmitrijs2005/citygate/internal/timex"
)

// JsonConfig mirrors Config for file input; durations accept "10h" or
// nanoseconds. Keys missing from the file keep their current values.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC      string         `json:"endpoint_addr_grpc"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	PasswordHashAlgorithm string         `json:"password_hash_algorithm"`
	BcryptCost            int            `json:"bcrypt_cost"`
	LoginRateLimit        int            `json:"login_rate_limit"`
	LogLevel              string         `json:"log_level"`
	LogFormat             string         `json:"log_format"`
}

func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{
		EndpointAddrHTTP:      config.EndpointAddrHTTP,
		EndpointAddrGRPC:      config.EndpointAddrGRPC,
		DatabaseDSN:           config.DatabaseDSN,
		SecretKey:             config.SecretKey,
		TokenValidityDuration: timex.Duration{Duration: config.TokenValidityDuration},
		PasswordHashAlgorithm: config.PasswordHashAlgorithm,
		BcryptCost:            config.BcryptCost,
		LoginRateLimit:        config.LoginRateLimit,
		LogLevel:              config.LogLevel,
		LogFormat:             config.LogFormat,
	}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.TokenValidityDuration = c.TokenValidityDuration.Duration
	config.PasswordHashAlgorithm = c.PasswordHashAlgorithm
	config.BcryptCost = c.BcryptCost
	config.LoginRateLimit = c.LoginRateLimit
	config.LogLevel = c.LogLevel
	config.LogFormat = c.LogFormat
	return nil
}
