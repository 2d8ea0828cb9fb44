package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(New(""))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "google", cfg.Provider.Name)
	require.Equal(t, 60*time.Second, cfg.Chat.TurnTimeout)
	require.Equal(t, 30*time.Second, cfg.Chat.ToolTimeout)
	require.Equal(t, 5, cfg.Chat.MaxSteps)
	require.Equal(t, "terminal", cfg.Log.Format)
	require.Empty(t, cfg.File)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider:
  name: anthropic
  model: claude-sonnet-4-5
chat:
  turnTimeout: 90s
tools:
  requireInstall: true
`), 0o644))
	t.Setenv("CHATCORE_PROVIDER_MODEL", "claude-haiku-4-5")
	t.Setenv("CHATCORE_LOG_FORMAT", "json")

	cfg, err := Load(New(path))
	require.NoError(t, err)
	require.Equal(t, path, cfg.File)
	require.Equal(t, "anthropic", cfg.Provider.Name)
	require.Equal(t, "claude-haiku-4-5", cfg.Provider.Model)
	require.Equal(t, 90*time.Second, cfg.Chat.TurnTimeout)
	require.True(t, cfg.Tools.RequireInstall)
	require.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(New(""))
	require.NoError(t, err)

	bad := cfg
	bad.Chat.MaxSteps = 0
	bad.Log.Format = "xml"
	err = bad.Validate()
	require.ErrorContains(t, err, "chat.maxSteps")
	require.ErrorContains(t, err, "log.format")
}

func TestProviderOptions(t *testing.T) {
	var cfg Config
	o := cfg.ProviderOptions()
	require.Nil(t, o.Temperature)
	require.Nil(t, o.MaxOutputTokens)

	cfg.Provider.Temperature = 0.2
	cfg.Provider.MaxOutputTokens = 1024
	cfg.Provider.APIKey = "k"
	o = cfg.ProviderOptions()
	require.InDelta(t, 0.2, *o.Temperature, 1e-9)
	require.Equal(t, 1024, *o.MaxOutputTokens)
	require.Equal(t, "k", o.APIKey)
}
