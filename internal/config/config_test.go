package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, IndexDriverPostgres, cfg.Index.Driver)
	assert.Equal(t, 3, cfg.Index.MaxRetries)
	assert.Equal(t, LockDriverRedis, cfg.Conversation.LockDriver)
	assert.Greater(t, cfg.Conversation.LockTTL, cfg.Server.MiddlewareTimeout)
	assert.Equal(t, 10, cfg.Conversation.RecentMessages)
	assert.Equal(t, 2*time.Minute, cfg.Conversation.RecentCacheTTL)
	assert.False(t, cfg.Conversation.EnforceSingleActive)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "postgres://flight:@localhost:5432/flight_support?sslmode=disable", cfg.Database.DSN())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
index:
  driver: sqlite
  dsn: /tmp/index.db
redis:
  enabled: false
conversation:
  lock_driver: local
  enforce_single_active: true
auth:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, IndexDriverSQLite, cfg.Index.Driver)
	assert.True(t, cfg.Conversation.EnforceSingleActive)
	assert.False(t, cfg.Auth.Enabled)

	url, err := cfg.MigrationURL()
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/index.db", url)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Index:        IndexConfig{Driver: IndexDriverMemory},
			Redis:        RedisConfig{Enabled: true},
			Conversation: ConversationConfig{LockDriver: LockDriverLocal},
			Auth:         AuthConfig{Enabled: true, JWTSecret: "s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown index driver", func(c *Config) { c.Index.Driver = "oracle" }, "unknown index driver"},
		{"sqlite without dsn", func(c *Config) { c.Index.Driver = IndexDriverSQLite }, "index.dsn is required"},
		{"auth without secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"auth disabled without secret", func(c *Config) { c.Auth = AuthConfig{} }, ""},
		{"redis lock without redis", func(c *Config) {
			c.Conversation.LockDriver = LockDriverRedis
			c.Redis.Enabled = false
		}, "requires redis.enabled"},
		{"redis lock outlived by request", func(c *Config) {
			c.Conversation.LockDriver = LockDriverRedis
			c.Conversation.LockTTL = 10 * time.Second
			c.Server.MiddlewareTimeout = 30 * time.Second
		}, "must exceed server.middleware_timeout"},
		{"redis lock outlives request", func(c *Config) {
			c.Conversation.LockDriver = LockDriverRedis
			c.Conversation.LockTTL = 45 * time.Second
			c.Server.MiddlewareTimeout = 30 * time.Second
		}, ""},
		{"unknown lock driver", func(c *Config) { c.Conversation.LockDriver = "zookeeper" }, "unknown lock driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMigrationURL_Memory(t *testing.T) {
	cfg := Config{Index: IndexConfig{Driver: IndexDriverMemory}}
	_, err := cfg.MigrationURL()
	assert.Error(t, err)
}
