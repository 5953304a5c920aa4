package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           string
	JWTSecret      string
	TickInterval   time.Duration
	ResubmitPolicy string // overwrite | reject | first
	RoomTTL        time.Duration
	LogLevel       string
}

func Load() Config {
	cfg := Config{
		Port:           getEnv("PORT", "4000"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TickInterval:   time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		ResubmitPolicy: getEnv("RESUBMIT_POLICY", "overwrite"),
		RoomTTL:        time.Duration(getEnvInt("ROOM_TTL_MINUTES", 60)) * time.Minute,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
