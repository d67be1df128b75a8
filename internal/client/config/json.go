package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/citygate/internal/flagx"
	"github.com/dmitrijs2005/citygate/internal/timex"
)

// JsonConfig mirrors Config for decoding; fields left out of the file keep
// their current values.
type JsonConfig struct {
	ServerURL string         `json:"server_url"`
	TokenFile string         `json:"token_file"`
	Timeout   timex.Duration `json:"timeout"`
}

func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	jc := JsonConfig{
		ServerURL: cfg.ServerURL,
		TokenFile: cfg.TokenFile,
		Timeout:   timex.Duration{Duration: cfg.Timeout},
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	cfg.ServerURL = jc.ServerURL
	cfg.TokenFile = jc.TokenFile
	cfg.Timeout = jc.Timeout.Duration
	return nil
}
