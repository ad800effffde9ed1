package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/signage")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "./migrations", cfg.MigrationsPath)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 5*time.Minute, cfg.TimelineCacheTTL)
	assert.Equal(t, "signage-server", cfg.MQTTClientID)
	assert.Equal(t, 5.0, cfg.DeviceRateLimit)
	assert.Equal(t, 10, cfg.DeviceRateBurst)
	assert.Empty(t, cfg.RedisAddress)
	assert.False(t, cfg.Development())
}

func TestOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/signage")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("DEVICE_RATE_LIMIT", "0.5")

	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.Development())
	assert.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, "localhost:6379", cfg.RedisAddress)
	assert.Equal(t, 0.5, cfg.DeviceRateLimit)
}

func TestRequiredKeys(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := fromViper(viper.New())
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/signage")
	t.Setenv("JWT_SECRET", "")
	_, err = fromViper(viper.New())
	assert.ErrorContains(t, err, "JWT_SECRET")
}
