package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration.
type Config struct {
	Port      string
	ClientURL string // CORS origin; "*" in development

	ScyllaHosts []string
	Keyspace    string

	RedisAddr string // empty disables the Redis history cache

	KafkaBrokers []string // empty disables the cross-gateway relay
	KafkaTopic   string

	JWTSecret string

	// StoreTimeout bounds every durable-store call so a slow node never
	// wedges a room's critical section.
	StoreTimeout time.Duration

	NodeID int64 // snowflake node, unique per instance
}

// Load reads configuration from the environment, consulting a .env file
// first when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:         getEnv("PORT", "5001"),
		ClientURL:    getEnv("CLIENT_URL", "*"),
		ScyllaHosts:  splitEnv("SCYLLA_HOSTS"),
		Keyspace:     getEnv("KEYSPACE", "coon"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitEnv("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "coon-events"),
		JWTSecret:    getEnv("JWT_SECRET", "dev_secret_change_me"),
		StoreTimeout: getDuration("STORE_TIMEOUT", 5*time.Second),
		NodeID:       getInt64("NODE_ID", 1),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitEnv(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
