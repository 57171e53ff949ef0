package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Postgres connection for the tool invocation audit log.
	DatabaseURL string

	// Redis holds conversation state and practice configuration.
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Conversation state retention. Calls are short-lived; anything older
	// than this is abandoned and safe to expire.
	ConversationStateTTL time.Duration

	// OpenAI configuration for the NLU adapter.
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAITimeout time.Duration

	// Scheduling/EHR API configuration.
	EHRBaseURL         string
	EHRClientID        string
	EHRClientSecret    string
	EHRTimeout         time.Duration
	EHRTokenExpirySlop time.Duration

	// Voice platform transcript API.
	TranscriptBaseURL    string
	TranscriptAPIKey     string
	TranscriptRetryDelay time.Duration

	// Maximum number of slots read out to a caller in one turn.
	SlotPresentationCount int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ConversationStateTTL: getEnvAsDuration("CONVERSATION_STATE_TTL", 4*time.Hour),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout: getEnvAsDuration("OPENAI_TIMEOUT", 8*time.Second),

		EHRBaseURL:         getEnv("EHR_BASE_URL", ""),
		EHRClientID:        getEnv("EHR_CLIENT_ID", ""),
		EHRClientSecret:    getEnv("EHR_CLIENT_SECRET", ""),
		EHRTimeout:         getEnvAsDuration("EHR_TIMEOUT", 10*time.Second),
		EHRTokenExpirySlop: getEnvAsDuration("EHR_TOKEN_EXPIRY_SLOP", 5*time.Minute),

		TranscriptBaseURL:    getEnv("TRANSCRIPT_BASE_URL", ""),
		TranscriptAPIKey:     getEnv("TRANSCRIPT_API_KEY", ""),
		TranscriptRetryDelay: getEnvAsDuration("TRANSCRIPT_RETRY_DELAY", 3*time.Second),

		SlotPresentationCount: getEnvAsInt("SLOT_PRESENTATION_COUNT", 4),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
