package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 50, cfg.MatchPoolSize)
	assert.Equal(t, 2*time.Minute, cfg.PresenceWindow)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MATCH_POOL_SIZE", "80")
	t.Setenv("PRESENCE_WINDOW", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.MatchPoolSize)
	assert.Equal(t, 90*time.Second, cfg.PresenceWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.MinIOUseSSL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv("MATCH_POOL_SIZE", "1")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MATCH_POOL_SIZE", "50")
	t.Setenv("JWT_SECRET", "short")
	_, err = Load()
	assert.Error(t, err)
}

func TestGetEnv_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, 7, getIntEnv("X_INT", 7))
	assert.Equal(t, time.Second, getDurationEnv("X_DUR", time.Second))
}
