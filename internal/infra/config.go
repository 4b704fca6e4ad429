package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Link is a labelled URL rendered as an inline keyboard button.
type Link struct {
	Label string
	URL   string
}

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	TelegramToken       string
	WebhookURL          string
	WebhookPath         string
	WebhookSecret       string
	ReminiAPIKey        string
	ReminiBaseURL       string
	ReminiUploadTimeout time.Duration
	PollMaxAttempts     int
	PollInterval        time.Duration
	MaxPhotoSizeMB      int
	WelcomeImagePath    string
	WelcomeLinks        []Link
	SpoolDir            string
	DefaultLocale       string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	DedupeTTL           time.Duration
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	ShutdownGrace       time.Duration
}

// MaxPhotoSizeBytes converts the configured megabyte limit to bytes.
func (c *Config) MaxPhotoSizeBytes() int64 {
	return int64(c.MaxPhotoSizeMB) * 1024 * 1024
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "5000"),
		TelegramToken:       strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		WebhookURL:          strings.TrimSpace(os.Getenv("WEBHOOK_URL")),
		WebhookPath:         getEnv("WEBHOOK_PATH", "/webhook"),
		WebhookSecret:       strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		ReminiAPIKey:        strings.TrimSpace(os.Getenv("REMINI_API_KEY")),
		ReminiBaseURL:       getEnv("REMINI_BASE_URL", "https://developer.remini.ai/api"),
		ReminiUploadTimeout: time.Second * time.Duration(getEnvInt("REMINI_UPLOAD_TIMEOUT_SECONDS", 60)),
		PollMaxAttempts:     getEnvInt("POLL_MAX_ATTEMPTS", 50),
		PollInterval:        time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 2)),
		MaxPhotoSizeMB:      getEnvInt("MAX_PHOTO_SIZE_MB", 5),
		WelcomeImagePath:    getEnv("WELCOME_IMAGE_PATH", "welcome.jpg"),
		WelcomeLinks:        parseLinks(os.Getenv("WELCOME_LINKS")),
		SpoolDir:            getEnv("SPOOL_DIR", "./spool"),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		DedupeTTL:           time.Second * time.Duration(getEnvInt("DEDUPE_TTL_SECONDS", 3600)),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		ShutdownGrace:       time.Second * time.Duration(getEnvInt("SHUTDOWN_GRACE_SECONDS", 30)),
	}

	if cfg.TelegramToken == "" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.MaxPhotoSizeMB <= 0 {
		return nil, fmt.Errorf("MAX_PHOTO_SIZE_MB must be positive")
	}
	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if !strings.HasPrefix(cfg.WebhookPath, "/") {
		cfg.WebhookPath = "/" + cfg.WebhookPath
	}

	return cfg, nil
}

// parseLinks reads "Label|https://url" pairs separated by commas.
func parseLinks(raw string) []Link {
	var links []Link
	for _, part := range strings.Split(raw, ",") {
		label, target, ok := strings.Cut(part, "|")
		if !ok {
			continue
		}
		label, target = strings.TrimSpace(label), strings.TrimSpace(target)
		if label == "" || target == "" {
			continue
		}
		links = append(links, Link{Label: label, URL: target})
	}
	return links
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
