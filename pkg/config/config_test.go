package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the loader binds, restoring them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range envBindings {
		for _, name := range names {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "zep", cfg.Store.Backend)
	assert.Equal(t, "https://api.getzep.com", cfg.Zep.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Zep.Timeout)
	assert.Equal(t, 1000, cfg.Maintenance.ListLimit)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "", cfg.ResolveGraphID(""))
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ZEP_API_KEY", "z-key")
	t.Setenv("ZEP_USER_ID", "user-1")
	t.Setenv("NEO4J_USER", "admin")
	t.Setenv("DATABASE_URL", "postgres://localhost/graph")
	t.Setenv("ZEPSYNC_STORE_BACKEND", "postgres")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "z-key", cfg.Zep.APIKey)
	assert.Equal(t, "admin", cfg.Database.Username)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/graph", cfg.Postgres.URL)
	assert.Equal(t, "user-1", cfg.ResolveGraphID(""))
	assert.NoError(t, cfg.CheckCredentials())
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: memory
memory:
  snapshot_path: graph.json
zep:
  graph_id: from-file
  timeout: 5s
journal:
  path: /tmp/journal
  ttl: 48h
`), 0o600))

	v := viper.New()
	require.NoError(t, ReadConfigFile(v, path))
	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "graph.json", cfg.Memory.SnapshotPath)
	assert.Equal(t, 5*time.Second, cfg.Zep.Timeout)
	assert.Equal(t, 48*time.Hour, cfg.Journal.TTL)
	assert.Equal(t, "from-file", cfg.ResolveGraphID(""))
	assert.Equal(t, "from-flag", cfg.ResolveGraphID("from-flag"))
	assert.NoError(t, cfg.CheckCredentials())
}

func TestReadConfigFileMissing(t *testing.T) {
	assert.Error(t, ReadConfigFile(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*viper.Viper)
	}{
		{"unknown backend", func(v *viper.Viper) { v.Set("store.backend", "sqlite") }},
		{"port out of range", func(v *viper.Viper) { v.Set("server.port", 70000) }},
		{"zero list limit", func(v *viper.Viper) { v.Set("maintenance.list_limit", 0) }},
		{"bad log level", func(v *viper.Viper) { v.Set("log.level", "loud") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			v := viper.New()
			tt.mutate(v)
			_, err := LoadFrom(v)
			assert.Error(t, err)
		})
	}
}

func TestCheckCredentials(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zep without key", Config{Store: StoreConfig{Backend: "zep"}}, true},
		{"zep with key", Config{Store: StoreConfig{Backend: "zep"}, Zep: ZepConfig{APIKey: "k"}}, false},
		{"neo4j without uri", Config{Store: StoreConfig{Backend: "neo4j"}}, true},
		{"postgres without url", Config{Store: StoreConfig{Backend: "postgres"}}, true},
		{"memory", Config{Store: StoreConfig{Backend: "memory"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.CheckCredentials()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingCredential)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ZEP_GRAPH_ID=env-graph\nZEP_API_KEY=from-file\n"), 0o600))
	t.Setenv("ZEP_API_KEY", "already-set")

	require.NoError(t, LoadEnvFile(path))
	t.Cleanup(func() { os.Unsetenv("ZEP_GRAPH_ID") })

	assert.Equal(t, "env-graph", os.Getenv("ZEP_GRAPH_ID"))
	assert.Equal(t, "already-set", os.Getenv("ZEP_API_KEY"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}
