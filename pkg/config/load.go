package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets. Secrets are never read from the YAML file.
const (
	EnvSerperAPIKey   = "SERPER_API_KEY"
	EnvGoogleAPIKey   = "GOOGLE_CSE_API_KEY"
	EnvGoogleCSEID    = "GOOGLE_CSE_ID"
	EnvGoogleCreds    = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvPostgresDSN    = "RECONCILER_POSTGRES_DSN"
	EnvSpreadsheetID  = "RECONCILER_SPREADSHEET_ID"
	defaultConfigFile = "config.yaml"
)

// Load reads the YAML config at path and overlays secrets from the environment.
// A .env file in the working directory is loaded first when present.
// A missing default config file yields an empty config (Validate fills in defaults).
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && (path == "" || path == defaultConfigFile):
		// Run on built-in defaults
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.ApplyEnv()
	return &cfg, nil
}

// ApplyEnv overlays environment-provided secrets and overrides
func (c *AppConfig) ApplyEnv() {
	switch c.Search.Provider {
	case "google":
		if v := os.Getenv(EnvGoogleAPIKey); v != "" {
			c.Search.APIKey = v
		}
		if v := os.Getenv(EnvGoogleCSEID); v != "" && c.Search.CSEID == "" {
			c.Search.CSEID = v
		}
	default:
		if v := os.Getenv(EnvSerperAPIKey); v != "" {
			c.Search.APIKey = v
		}
	}
	if v := os.Getenv(EnvGoogleCreds); v != "" && c.Remote.CredentialsFile == "" {
		c.Remote.CredentialsFile = v
	}
	if v := os.Getenv(EnvSpreadsheetID); v != "" && c.Remote.SpreadsheetID == "" {
		c.Remote.SpreadsheetID = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Remote.PostgresDSN = v
	}
}
