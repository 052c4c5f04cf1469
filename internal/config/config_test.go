package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"FARMBOT_MODE", "LOG_LEVEL", "LOG_JSON", "LOG_FILE", "WEB_PORT",
	"COMPOUND_INTERVAL", "COMPOUND_DEADLINE_WINDOW", "COMPOUND_SLIPPAGE_PERCENT", "COMPOUND_MAX_RETRIES",
	"REWARD_EMISSION_INTERVAL", "REWARD_EMISSION_AMOUNT", "FEE_MODE",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	require.NoError(t, LoadConfig())
	assert.Equal(t, ModeSimulation, Mode)
	assert.Equal(t, "info", LogLevel)
	assert.False(t, LogJSON)
	assert.Equal(t, "8080", WebPort)
	assert.Equal(t, time.Minute, CompoundInterval)
	assert.Equal(t, 5*time.Minute, CompoundDeadlineWindow)
	assert.Equal(t, 1.0, CompoundSlippagePercent)
	assert.Equal(t, uint64(3), CompoundMaxRetries)
	assert.Equal(t, 30*time.Second, RewardEmissionInterval)
	assert.Empty(t, FeeMode)
	assert.False(t, DatabaseEnabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("COMPOUND_INTERVAL", "10s")
	t.Setenv("COMPOUND_SLIPPAGE_PERCENT", "0.5")
	t.Setenv("COMPOUND_MAX_RETRIES", "0")
	t.Setenv("FEE_MODE", "bounty")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "farmbot")
	t.Setenv("DB_NAME", "farmbot")

	require.NoError(t, LoadConfig())
	assert.Equal(t, "debug", LogLevel)
	assert.True(t, LogJSON)
	assert.Equal(t, "9090", WebPort)
	assert.Equal(t, 10*time.Second, CompoundInterval)
	assert.Equal(t, 0.5, CompoundSlippagePercent)
	assert.Equal(t, uint64(0), CompoundMaxRetries)
	assert.Equal(t, "bounty", FeeMode)
	assert.True(t, DatabaseEnabled())

	db := Database()
	assert.Equal(t, 5432, db.Port)
	assert.Equal(t, "disable", db.SSLMode)
	assert.Contains(t, db.DSN(), "dbname=farmbot")
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"FARMBOT_MODE", "mainnet"},
		{"LOG_JSON", "maybe"},
		{"WEB_PORT", "http"},
		{"COMPOUND_INTERVAL", "-1s"},
		{"COMPOUND_DEADLINE_WINDOW", "soon"},
		{"COMPOUND_SLIPPAGE_PERCENT", "101"},
		{"COMPOUND_MAX_RETRIES", "-1"},
		{"REWARD_EMISSION_AMOUNT", "-5"},
		{"FEE_MODE", "flat"},
		{"DB_HOST", "localhost"}, // without DB_USER and DB_NAME
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			assert.Error(t, LoadConfig())
		})
	}
}
