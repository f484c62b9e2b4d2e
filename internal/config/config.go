// Package config loads service configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     int
	CacheTTLHours int

	KafkaBrokers []string

	ConsulHost string
	ConsulPort int

	OrderServicePort  int
	StatusServicePort int
	WSGatewayPort     int
	APIGatewayPort    int

	PingIntervalSeconds int
}

// Load reads configuration from environment variables, falling back
// to local development defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenvInt("DB_PORT", 5432),
		DBUser:     getenv("DB_USER", "ordertrack"),
		DBPassword: getenv("DB_PASSWORD", "ordertrack123"),
		DBName:     getenv("DB_NAME", "ordertrack"),

		RedisHost:     getenv("REDIS_HOST", "localhost"),
		RedisPort:     getenvInt("REDIS_PORT", 6379),
		CacheTTLHours: getenvInt("CACHE_TTL_HOURS", 168), // 7 days

		KafkaBrokers: strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ","),

		ConsulHost: getenv("CONSUL_HOST", "localhost"),
		ConsulPort: getenvInt("CONSUL_PORT", 8500),

		OrderServicePort:  getenvInt("ORDER_SERVICE_PORT", 8081),
		StatusServicePort: getenvInt("STATUS_SERVICE_PORT", 8082),
		WSGatewayPort:     getenvInt("WS_GATEWAY_PORT", 8083),
		APIGatewayPort:    getenvInt("API_GATEWAY_PORT", 8080),

		PingIntervalSeconds: getenvInt("WS_PING_INTERVAL_SECONDS", 30),
	}
}

// CacheTTL returns the projection TTL as a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// PingInterval returns the liveness probe interval as a duration.
func (c Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
