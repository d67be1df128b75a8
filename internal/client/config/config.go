package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	// ServerURL is the gateway (or auth service) base URL.
	ServerURL string `envconfig:"CITYGATE_SERVER"`
	// TokenFile stores the token from the last login.
	TokenFile string        `envconfig:"CITYGATE_TOKEN_FILE"`
	Timeout   time.Duration `envconfig:"CITYGATE_TIMEOUT"`
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.Timeout = 10 * time.Second
	if home, err := os.UserHomeDir(); err == nil {
		c.TokenFile = filepath.Join(home, ".citygate", "token")
	}
}

// LoadConfig applies defaults, the JSON file named in args (if any) and
// the environment, in that order.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
