package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string

	// Remote grant-data API
	GrantAPIBaseURL     string
	GrantAPITimeout     time.Duration
	GrantAPIMinInterval time.Duration

	// Sync defaults
	SyncMaxOrganisations int
	SyncMaxGrants        int

	// LLM scoring service
	LLMAPIKey    string
	LLMBaseURL   string
	LLMModelName string

	// Match cache
	MatchCacheTTL time.Duration

	// HTTP rate limiting
	RateLimitRPS   int
	RateLimitBurst int
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 5*time.Minute),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "fundermatch"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "fundermatch123"),
		PostgresDB:       getEnv("POSTGRES_DB", "fundermatch"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "fundermatch-platform"),

		GrantAPIBaseURL:     getEnv("GRANT_API_BASE_URL", "https://grantdata.example.org/api"),
		GrantAPITimeout:     getDuration("GRANT_API_TIMEOUT", 30*time.Second),
		GrantAPIMinInterval: getDuration("GRANT_API_MIN_INTERVAL", 500*time.Millisecond),

		SyncMaxOrganisations: getIntEnv("SYNC_MAX_ORGANISATIONS", 100),
		SyncMaxGrants:        getIntEnv("SYNC_MAX_GRANTS", 500),

		LLMAPIKey:    getEnv("LLM_API_KEY", ""),
		LLMBaseURL:   getEnv("LLM_BASE_URL", "https://api.anthropic.com"),
		LLMModelName: getEnv("LLM_MODEL_NAME", "claude-3-5-sonnet-20241022"),

		MatchCacheTTL: getDuration("MATCH_CACHE_TTL", 7*24*time.Hour),

		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
