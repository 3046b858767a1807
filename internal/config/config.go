package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Dialog   DialogConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	StoreBackend       string // "memory" or "redis"
}

type DatabaseConfig struct {
	Connection string
}

// GatewayConfig points at the external scoring collaborators.
type GatewayConfig struct {
	SearchBaseURL string
	QnaBaseURL    string
	SpellBaseURL  string // Empty disables spelling correction
	Timeout       time.Duration
}

// DialogConfig carries the aggregation-policy thresholds. All scores are
// in [0, 1].
type DialogConfig struct {
	QnaMinConfidence       float64
	QnaConfidencePrompt    float64
	ChoiceConfidenceDelta  float64
	AnswerUncertainWarning float64
	MaxSuggestions         int
	ContextCap             int
}

type AuthConfig struct {
	JWTSecret string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			StoreBackend:       getEnv("CONVERSATION_STORE", "memory"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Gateway: GatewayConfig{
			SearchBaseURL: getEnv("SEARCH_GATEWAY_URL", "http://localhost:8100"),
			QnaBaseURL:    getEnv("QNA_GATEWAY_URL", "http://localhost:8101"),
			SpellBaseURL:  getEnv("SPELL_GATEWAY_URL", ""),
			Timeout:       getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Dialog: DialogConfig{
			QnaMinConfidence:       getEnvAsFloat("QNA_MIN_CONFIDENCE", 0.3),
			QnaConfidencePrompt:    getEnvAsFloat("QNA_CONFIDENCE_PROMPT", 0.5),
			ChoiceConfidenceDelta:  getEnvAsFloat("CHOICE_CONFIDENCE_DELTA", 0.2),
			AnswerUncertainWarning: getEnvAsFloat("ANSWER_UNCERTAIN_WARNING", 0.6),
			MaxSuggestions:         getEnvAsInt("MAX_SUGGESTIONS", 3),
			ContextCap:             getEnvAsInt("CONTEXT_CAP", 10),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
