package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolConfig(t *testing.T) {
	cfg, err := newPoolConfig("postgres://flight:pw@localhost:5432/flight_support?sslmode=disable", 8, 2)
	require.NoError(t, err)

	assert.Equal(t, int32(8), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, "UTC", cfg.ConnConfig.RuntimeParams["timezone"])
	assert.Equal(t, applicationName, cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestNewPoolConfig_Sizing(t *testing.T) {
	clamped, err := newPoolConfig("postgres://localhost/db", 4, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(4), clamped.MinConns)

	defaults, err := newPoolConfig("postgres://localhost/db", 0, 0)
	require.NoError(t, err)
	assert.Positive(t, defaults.MaxConns)
	assert.Zero(t, defaults.MinConns)
}

func TestNewPoolConfig_KeepsExplicitApplicationName(t *testing.T) {
	cfg, err := newPoolConfig("postgres://localhost/db?application_name=index-migrator", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "index-migrator", cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestNewPoolConfig_BadDSN(t *testing.T) {
	_, err := newPoolConfig("postgres://%zz", 0, 0)
	assert.Error(t, err)
}
