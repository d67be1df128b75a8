package config

import "github.com/kelseyhightower/envconfig"

// parseEnv overlays AUTH_* variables; unset variables leave fields alone.
func parseEnv(config *Config) error {
	return envconfig.Process("", config)
}
