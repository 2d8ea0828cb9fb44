// Package base holds configuration and debug logging shared by providers.
package base

import (
	"os"

	"github.com/joho/godotenv"
)

func init() {
	// A missing .env is not an error.
	_ = godotenv.Load()
}

// LoadEnv loads the given .env files, or ./.env when none are named.
// Variables already set in the environment are kept.
func LoadEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}

// Config is the provider configuration common to every backend.
type Config struct {
	APIKey  string
	BaseURL string

	// DebugPath writes JSONL debug records (request, chunk, update) when set.
	DebugPath string

	MaxOutputTokens *int
	Temperature     *float64

	ExtraHeaders map[string]string
	ExtraBody    map[string]any
}

// ApplyEnvDefaults fills empty APIKey and BaseURL from the named
// variables. An empty name is skipped.
func ApplyEnvDefaults(cfg *Config, apiKeyEnv, baseURLEnv string) {
	if cfg.APIKey == "" && apiKeyEnv != "" {
		cfg.APIKey = os.Getenv(apiKeyEnv)
	}
	if cfg.BaseURL == "" && baseURLEnv != "" {
		cfg.BaseURL = os.Getenv(baseURLEnv)
	}
}

// FirstEnv returns the first non-empty variable among names.
func FirstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
