package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.ConfirmationTTL)
	assert.Equal(t, "showroom.activity", cfg.AMQPExchange)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("CONSOLE_API_URL", "https://console.example.com")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "https://console.example.com", cfg.APIURL)
	assert.Equal(t, 10*time.Minute, cfg.RefreshInterval)
}
