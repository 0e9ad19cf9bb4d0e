package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the scheduler.
type Config struct {
	DatabaseURL   string
	TelegramToken string

	OpenAIKey     string
	OpenAIBaseURL string
	AgentModel    string

	ExecutorWorkers   int
	ExecutorQueueSize int
	ExecutorTimeout   time.Duration

	PollInterval time.Duration
	LogLevel     string
}

// Load reads configuration from environment variables with sane defaults.
// TELEGRAM_TOKEN and OPENAI_API_KEY are optional: without them the
// notifier logs instead of sending and the executor uses the stub runner.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TelegramToken:     strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		OpenAIKey:         strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:     strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		AgentModel:        strings.TrimSpace(os.Getenv("AGENT_MODEL")),
		ExecutorWorkers:   parseInt(os.Getenv("EXECUTOR_WORKERS"), 4),
		ExecutorQueueSize: parseInt(os.Getenv("EXECUTOR_QUEUE_SIZE"), 64),
		ExecutorTimeout:   parseSeconds(os.Getenv("EXECUTOR_TIMEOUT_SECONDS"), 120*time.Second),
		PollInterval:      parseSeconds(os.Getenv("POLL_INTERVAL_SECONDS"), 15*time.Second),
		LogLevel:          strings.TrimSpace(os.Getenv("LOG_LEVEL")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "agent_scheduler.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func parseInt(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func parseSeconds(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}
