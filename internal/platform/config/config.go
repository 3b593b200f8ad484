package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	AppEnv       string `env:"APP_ENV" default:"development"`
	Port         string `env:"PORT" default:"8080"`
	DiscordToken string `env:"DISCORD_TOKEN"`
	AppID        string `env:"APP_ID"`
	CommandsFile string `env:"COMMANDS_FILE"`
	BotUsername  string `env:"BOT_USERNAME" default:"NS Shiritori"`
	LogLevel     string `env:"LOG_LEVEL" default:"info"`
	LogFormat    string `env:"LOG_FORMAT" default:"text"`

	GatewayIntents   int    `env:"GATEWAY_INTENTS" default:"34304"`
	GatewayLookupURL string `env:"GATEWAY_LOOKUP_URL" default:"https://discord.com/api/v10/gateway"`
	APIBaseURL       string `env:"API_BASE_URL" default:"https://discord.com/api/v10"`
	APIRateLimit     int    `env:"API_RATE_LIMIT" default:"40"`
	DictionaryURL    string `env:"DICTIONARY_URL" default:"https://api.dictionaryapi.dev/api/v2/entries/en/"`

	VoteThreshold       int     `env:"VOTE_THRESHOLD" default:"3"`
	SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD" default:"0.3"`

	StoreBackend string `env:"STORE_BACKEND" default:"file"`
	ChannelsDir  string `env:"CHANNELS_DIR" default:"channels"`
	RedisURL     string `env:"REDIS_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is required")
	}

	if cfg.CommandsFile != "" && cfg.AppID == "" {
		return errors.New("APP_ID is required when COMMANDS_FILE is set")
	}

	switch cfg.StoreBackend {
	case StoreFile:
		if cfg.ChannelsDir == "" {
			return errors.New("CHANNELS_DIR is required for the file store")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store")
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
		if cfg.AppEnv == "production" {
			if err := validateSSLMode(cfg.DatabaseURL); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of file, redis, postgres, got %q", cfg.StoreBackend)
	}

	if cfg.VoteThreshold < 1 {
		return fmt.Errorf("VOTE_THRESHOLD must be at least 1, got %d", cfg.VoteThreshold)
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be between 0 and 1, got %v", cfg.SimilarityThreshold)
	}
	if cfg.APIRateLimit < 1 {
		return fmt.Errorf("API_RATE_LIMIT must be at least 1, got %d", cfg.APIRateLimit)
	}
	if cfg.GatewayIntents < 0 {
		return fmt.Errorf("GATEWAY_INTENTS must not be negative, got %d", cfg.GatewayIntents)
	}

	return nil
}

func validateSSLMode(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
