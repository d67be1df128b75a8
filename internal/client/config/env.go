package config

import "github.com/kelseyhightower/envconfig"

func parseEnv(cfg *Config) error {
	return envconfig.Process("", cfg)
}
