package config

import (
	"fmt"
	"strings"
	"time"

	"venue-backend/utils"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config is everything read from the environment at startup.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	// Location is the venue time zone. Booking dates are calendar dates in it.
	Location *time.Location

	SessionStore string
	SessionTTL   time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins []string
	Seed        bool
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads Config from env. Unset values fall back to development defaults.
func Load() (Config, error) {
	cfg := Config{
		Env:           utils.EnvOrDefault("APP_ENV", "development"),
		Port:          utils.EnvOrDefault("PORT", "8080"),
		LogLevel:      utils.EnvOrDefault("LOG_LEVEL", ""),
		SessionStore:  strings.ToLower(utils.EnvOrDefault("SESSION_STORE", SessionStoreMemory)),
		SessionTTL:    utils.EnvDuration("SESSION_TTL", 0),
		RedisAddr:     redisAddr(),
		RedisPassword: utils.EnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       utils.EnvInt("REDIS_DB", 0),
		CORSOrigins:   parseCorsOrigins(utils.EnvOrDefault("CORS_ORIGINS", "")),
		Seed:          utils.EnvBool("DB_SEED", false),
	}

	tz := utils.EnvOrDefault("VENUE_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return cfg, fmt.Errorf("invalid VENUE_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	switch cfg.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return cfg, fmt.Errorf("invalid SESSION_STORE %q: expected memory or redis", cfg.SessionStore)
	}
	if cfg.SessionTTL < 0 {
		return cfg, fmt.Errorf("invalid SESSION_TTL %s: must not be negative", cfg.SessionTTL)
	}
	return cfg, nil
}

func redisAddr() string {
	host := utils.EnvOrDefault("REDIS_HOST", "")
	port := utils.EnvOrDefault("REDIS_PORT", "")
	if host != "" && port != "" {
		return host + ":" + port
	}
	return utils.EnvOrDefault("REDIS_ADDR", "localhost:6379")
}

func parseCorsOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
