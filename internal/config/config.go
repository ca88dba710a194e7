package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string

	APIBaseURL string
	WSURL      string

	HTTPTimeout  time.Duration
	FeedPageSize int
	ChatPageSize int

	// Mock server only
	Port           string
	AllowedOrigins string
	JWTSecret      string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),

		APIBaseURL: getEnv("THRIVE_API_BASE_URL", "http://localhost:8080"),
		WSURL:      getEnv("THRIVE_WS_URL", "ws://localhost:8080/ws/receipts"),

		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		JWTSecret:      getEnv("JWT_SECRET", "12345"),
	}

	var err error
	cfg.HTTPTimeout, err = time.ParseDuration(getEnv("HTTP_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.FeedPageSize, err = parseInt(getEnv("FEED_PAGE_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_PAGE_SIZE: %w", err)
	}
	cfg.ChatPageSize, err = parseInt(getEnv("CHAT_PAGE_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_PAGE_SIZE: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
