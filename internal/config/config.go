package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string
	DBDSN    string

	// AI provider
	AIProvider        string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string

	// Chat orchestration
	ChatTimeout       time.Duration
	ChatMaxToolRounds int

	// Optional read cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Optional audit events
	RabbitURL   string
	RabbitQueue string

	SeedData bool
}

func Load() Config {
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/athena?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			"app", "apppass", "127.0.0.1", "3306", "athena",
		)
	}

	aiProvider := os.Getenv("AI_PROVIDER")
	if aiProvider == "" {
		aiProvider = "ollama"
	}

	ollamaBaseURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}

	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "qwen3:1.7b"
	}

	openRouterBaseURL := os.Getenv("OPENROUTER_BASE_URL")
	if openRouterBaseURL == "" {
		openRouterBaseURL = "https://openrouter.ai/api/v1"
	}
	openRouterModel := os.Getenv("OPENROUTER_MODEL")
	if openRouterModel == "" {
		openRouterModel = "openrouter/auto"
	}

	chatTimeout := 120 * time.Second
	if v := os.Getenv("CHAT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			chatTimeout = time.Duration(n) * time.Second
		}
	}

	maxRounds := 5
	if v := os.Getenv("CHAT_MAX_TOOL_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxRounds = n
		}
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	cacheTTL := 30 * time.Second
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cacheTTL = time.Duration(n) * time.Second
		}
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "chat_events"
	}

	return Config{
		HTTPAddr: httpAddr,
		DBDSN:    dsn,

		AIProvider:        aiProvider,
		OllamaBaseURL:     ollamaBaseURL,
		OllamaModel:       ollamaModel,
		OpenRouterBaseURL: openRouterBaseURL,
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   openRouterModel,

		ChatTimeout:       chatTimeout,
		ChatMaxToolRounds: maxRounds,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		CacheTTL:      cacheTTL,

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,

		SeedData: os.Getenv("SEED_DATA") == "true",
	}
}

// Validate checks the settings that must resolve before the first chat
// request can be served. A failure here is startup-fatal, not a
// per-request error.
func (c Config) Validate() error {
	switch c.AIProvider {
	case "ollama":
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("config: OLLAMA_BASE_URL is required")
		}
		if c.OllamaModel == "" {
			return fmt.Errorf("config: OLLAMA_MODEL is required")
		}
	case "openrouter":
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("config: OPENROUTER_API_KEY is required")
		}
		if c.OpenRouterModel == "" {
			return fmt.Errorf("config: OPENROUTER_MODEL is required")
		}
	default:
		return fmt.Errorf("config: unsupported AI_PROVIDER=%q", c.AIProvider)
	}
	return nil
}
