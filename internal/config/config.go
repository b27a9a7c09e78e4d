package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr     string
	LogLevel string

	Provider        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	Model           string
	Temperature     float64
	AnthropicAPIKey string
	OllamaBaseURL   string
	AWSRegion       string
	BedrockModelID  string

	RedisURL    string
	DatabaseURL string
	TopicsPath  string

	IdempotencyTTL time.Duration
	RateLimitRPM   int

	OTLPEndpoint  string
	SecretsName   string
	SNSTopicARN   string
	UsageQueueURL string

	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Addr:     getEnv("ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Provider:        getEnv("PROVIDER", "openai"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:           getEnv("MODEL", "gpt-4.1"),
		Temperature:     getFloatEnv("TEMPERATURE", 0.4),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaBaseURL:   getEnv("OLLAMA_BASE_URL", ""),
		AWSRegion:       getEnv("AWS_REGION", ""),
		BedrockModelID:  getEnv("BEDROCK_MODEL_ID", ""),

		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TopicsPath:  getEnv("TOPICS_PATH", ""),

		IdempotencyTTL: getDurationEnv("IDEMPOTENCY_TTL", 10*time.Second),
		RateLimitRPM:   getIntEnv("RATE_LIMIT_RPM", 60),

		OTLPEndpoint:  getEnv("OTLP_ENDPOINT", ""),
		SecretsName:   getEnv("SECRETS_NAME", ""),
		SNSTopicARN:   getEnv("SNS_TOPIC_ARN", ""),
		UsageQueueURL: getEnv("USAGE_QUEUE_URL", ""),

		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
