package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_NormalizesAndDefaults(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{
		ServerURL: "http://127.0.0.1:8000/",
		StateDir:  tmp,
		LogLevel:  " DEBUG ",
		Path:      filepath.Join(tmp, "console.json"),
	}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://127.0.0.1:8000", cfg.ServerURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, DefaultGatewayHost, cfg.GatewayHost)
	assert.Equal(t, DefaultGatewayPort, cfg.GatewayPort)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultReconnectDelay, cfg.ReconnectDelay)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, "127.0.0.1:8765", cfg.GatewayAddr())
	assert.Equal(t, filepath.Join(tmp, "gateway.lock"), cfg.LockPath())
}

func TestConfig_Validate_ErrorsOnInvalidInputs(t *testing.T) {
	tmp := t.TempDir()
	base := func() *Config {
		return &Config{ServerURL: "http://127.0.0.1:8000", StateDir: tmp}
	}

	t.Run("bad server url", func(t *testing.T) {
		cfg := base()
		cfg.ServerURL = "ftp://bad.example.com"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server url")
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := base()
		cfg.LogLevel = "loud"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidLogLevel)
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.GatewayPort = 70000
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)
	})

	t.Run("bad page size", func(t *testing.T) {
		cfg := base()
		cfg.PageSize = 30
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidPageSize)
	})
}

func TestConfig_SaveAndLoad_Roundtrip(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "console.json")

	cfg := Default()
	cfg.ServerURL = "http://10.0.0.5:8000"
	cfg.StateDir = tmp
	cfg.Token = "secret-token"
	cfg.PollInterval = 2 * time.Second
	cfg.PageSize = 100
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", loaded.ServerURL)
	assert.Equal(t, "secret-token", loaded.Token)
	assert.Equal(t, 2*time.Second, loaded.PollInterval)
	assert.Equal(t, 100, loaded.PageSize)
	assert.Equal(t, path, loaded.Path)
}

func TestConfig_LoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Redacted(t *testing.T) {
	cfg := Default()
	cfg.Token = "abcdefgh"
	cfg.GatewayToken = "xy"

	r := cfg.Redacted()
	assert.Equal(t, "abcd*****", r.Token)
	assert.Equal(t, "*****", r.GatewayToken)
	assert.Equal(t, "abcdefgh", cfg.Token, "original untouched")
}
