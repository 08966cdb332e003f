package config

import (
	"os"
	"strconv"
)

// Config centralizes runtime settings for the bot.
type Config struct {
	TelegramToken   string
	TelegramGroupID int64
	AllowedChatIDs  string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAITimeoutMS  int
	OpenAIMaxRetries int

	RecLocationAPIURL    string
	RecLocationAPIToken  string
	RecLocationTimeoutMS int

	QueueMaxRetries          int
	QueueRetryDelayMS        int
	QueueMessageDelayMS      int
	QueueGroupMessageDelayMS int

	ServiceCacheTTLHours    int
	ServicePendingWindowMin int
	ServiceTimingWindowMin  int

	SendRatePerSecond float64
	SendBurst         int
}

func Load() Config {
	return Config{
		TelegramToken:   getEnv("TELEGRAM_TOKEN", ""),
		TelegramGroupID: getEnvInt64("TELEGRAM_GROUP_ID", 0),
		AllowedChatIDs:  getEnv("ALLOWED_CHAT_IDS", ""),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAITimeoutMS:  getEnvInt("OPENAI_TIMEOUT_MS", 30000),
		OpenAIMaxRetries: getEnvInt("OPENAI_MAX_RETRIES", 2),

		RecLocationAPIURL:    getEnv("RECLOCATION_API_URL", ""),
		RecLocationAPIToken:  getEnv("RECLOCATION_API_TOKEN", ""),
		RecLocationTimeoutMS: getEnvInt("RECLOCATION_TIMEOUT_MS", 10000),

		QueueMaxRetries:          getEnvInt("QUEUE_MAX_RETRIES", 3),
		QueueRetryDelayMS:        getEnvInt("QUEUE_RETRY_DELAY_MS", 1000),
		QueueMessageDelayMS:      getEnvInt("QUEUE_MESSAGE_DELAY_MS", 200),
		QueueGroupMessageDelayMS: getEnvInt("QUEUE_GROUP_MESSAGE_DELAY_MS", 50),

		ServiceCacheTTLHours:    getEnvInt("SERVICE_CACHE_TTL_HOURS", 24),
		ServicePendingWindowMin: getEnvInt("SERVICE_PENDING_WINDOW_MIN", 30),
		ServiceTimingWindowMin:  getEnvInt("SERVICE_TIMING_WINDOW_MIN", 10),

		SendRatePerSecond: getEnvFloat("SEND_RATE_PER_SECOND", 25),
		SendBurst:         getEnvInt("SEND_BURST", 5),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
