package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/trip-ledger/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.Equal(t, config.DefaultEnv, cfg.Env)
	assert.Equal(t, config.DefaultDBPath, cfg.DBPath)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoad_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "port: 9090\nenv: production\ndb_path: /data/trips.db\ncors_origins:\n  - https://app.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "/data/trips.db", cfg.DBPath)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9090\n"), 0o644))
	t.Setenv("TRIPLEDGER_PORT", "7070")
	t.Setenv("TRIPLEDGER_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("TRIPLEDGER_PORT", "not-a-port")
	_, err := config.Load("")
	assert.Error(t, err)

	t.Setenv("TRIPLEDGER_PORT", "99999999")
	_, err = config.Load("")
	assert.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
