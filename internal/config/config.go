// Package config gathers runtime configuration from the environment
// into one typed struct with sane defaults, so the boot sequence stops
// reaching into os.Getenv individually.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	FrontendURL string
	JWTSecret   string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	QueueTimeout    time.Duration
	CleanupInterval time.Duration
	MatchTimeout    time.Duration
	TestDuration    time.Duration
}

func Load() Config {
	return Config{
		Port:        firstNonEmpty(os.Getenv("PORT"), "8080"),
		FrontendURL: firstNonEmpty(os.Getenv("FRONTEND_URL"), "http://localhost:5173"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     firstNonEmpty(os.Getenv("DB_PORT"), "5432"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       parseIntEnv("REDIS_DB", 0),

		QueueTimeout:    parseDurationEnv("QUEUE_TIMEOUT", 30*time.Second),
		CleanupInterval: parseDurationEnv("CLEANUP_INTERVAL", 5*time.Second),
		MatchTimeout:    parseDurationEnv("MATCH_TIMEOUT", 120*time.Second),
		TestDuration:    parseDurationEnv("TEST_DURATION", 60*time.Second),
	}
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	dur, err := time.ParseDuration(raw)
	if err != nil || dur <= 0 {
		log.Printf("invalid %s value %q, using default %s", key, raw, fallback)
		return fallback
	}
	return dur
}

func parseIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s value %q, using default %d", key, raw, fallback)
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
