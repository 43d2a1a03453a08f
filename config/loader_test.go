package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Routing.MaxHandoffs)
	assert.Equal(t, 3, cfg.Routing.BaseComplexity)
	assert.Equal(t, "general_specialist", cfg.Routing.FallbackSpecialist)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Type)
	assert.True(t, cfg.Routing.HandoffsEnabled)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
routing:
  max_handoffs: 8
  fallback_specialist: catch_all
session:
  type: file
  base_dir: /tmp/swarmroute-test
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Routing.MaxHandoffs)
	assert.Equal(t, "catch_all", cfg.Routing.FallbackSpecialist)
	assert.Equal(t, SessionStoreFile, cfg.Session.Type)
	// Untouched values keep defaults.
	assert.Equal(t, 0.9, cfg.Routing.ConfidenceSingle)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	t.Setenv("SWARMROUTE_ROUTING_MAX_HANDOFFS", "3")
	t.Setenv("SWARMROUTE_ROUTING_HANDOFFS_ENABLED", "false")
	t.Setenv("SWARMROUTE_SESSION_REDIS_ADDR", "redis.internal:6380")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Routing.MaxHandoffs)
	assert.False(t, cfg.Routing.HandoffsEnabled)
	assert.Equal(t, "redis.internal:6380", cfg.Session.Redis.Addr)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Routing.MaxHandoffs)
}

func TestLoader_Validator(t *testing.T) {
	_, err := NewLoader().WithValidator(func(c *Config) error {
		return assert.AnError
	}).Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Routing.MaxHandoffs = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Routing.ConfidenceMedium = 0.95 // above single
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Routing.WeightMigration = -1
	assert.Error(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "sr", Password: "pw", Name: "sessions", SSLMode: "disable"}
	assert.Contains(t, pg.DSN(), "host=db")

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "sr", Password: "pw", Name: "sessions"}
	assert.Contains(t, my.DSN(), "@tcp(db:3306)")

	lite := DatabaseConfig{Driver: "sqlite", Name: "test.db"}
	assert.Equal(t, "test.db", lite.DSN())

	unknown := DatabaseConfig{Driver: "oracle"}
	assert.Equal(t, "", unknown.DSN())
}
