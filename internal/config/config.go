package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds environment-based settings
type Config struct {
	Environment    string
	DatabaseURL    string
	MigrationsPath string
	JWTSecret      string
	ServerAddress  string
	LogLevel       string

	// LockTimeout bounds how long a writer waits for a busy schedule.
	LockTimeout time.Duration

	RedisAddress     string
	RedisUsername    string
	RedisPassword    string
	TimelineCacheTTL time.Duration

	MQTTBrokerURL string
	MQTTClientID  string

	DeviceRateLimit float64
	DeviceRateBurst int
}

// Development reports whether logs should be human readable.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

var keys = []string{
	"APP_ENV", "DATABASE_URL", "MIGRATIONS_PATH", "JWT_SECRET", "SERVER_ADDRESS", "LOG_LEVEL",
	"LOCK_TIMEOUT", "REDIS_ADDRESS", "REDIS_USERNAME", "REDIS_PASSWORD", "TIMELINE_CACHE_TTL",
	"MQTT_BROKER_URL", "MQTT_CLIENT_ID", "DEVICE_RATE_LIMIT", "DEVICE_RATE_BURST",
}

// Load reads a .env file if one exists, then environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}
	return fromViper(viper.New())
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("MIGRATIONS_PATH", "./migrations")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOCK_TIMEOUT", "5s")
	v.SetDefault("TIMELINE_CACHE_TTL", "5m")
	v.SetDefault("MQTT_CLIENT_ID", "signage-server")
	v.SetDefault("DEVICE_RATE_LIMIT", 5)
	v.SetDefault("DEVICE_RATE_BURST", 10)

	cfg := &Config{
		Environment:      v.GetString("APP_ENV"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		MigrationsPath:   v.GetString("MIGRATIONS_PATH"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		ServerAddress:    v.GetString("SERVER_ADDRESS"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LockTimeout:      v.GetDuration("LOCK_TIMEOUT"),
		RedisAddress:     v.GetString("REDIS_ADDRESS"),
		RedisUsername:    v.GetString("REDIS_USERNAME"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		TimelineCacheTTL: v.GetDuration("TIMELINE_CACHE_TTL"),
		MQTTBrokerURL:    v.GetString("MQTT_BROKER_URL"),
		MQTTClientID:     v.GetString("MQTT_CLIENT_ID"),
		DeviceRateLimit:  v.GetFloat64("DEVICE_RATE_LIMIT"),
		DeviceRateBurst:  v.GetInt("DEVICE_RATE_BURST"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DeviceRateLimit <= 0 || cfg.DeviceRateBurst <= 0 {
		return nil, fmt.Errorf("DEVICE_RATE_LIMIT and DEVICE_RATE_BURST must be positive")
	}
	if cfg.LockTimeout < 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT must not be negative")
	}
	return cfg, nil
}
