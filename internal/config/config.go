package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bot.
type Config struct {
	// BotToken is the Telegram bot API token.
	BotToken string
	BotDebug bool

	// SourceChannelID is the private channel whose posts feed the content index.
	SourceChannelID int64

	TMDBAPIKey  string
	OMDbAPIKey  string
	HTTPTimeout time.Duration
	// ProviderRPS caps outbound requests per second to each metadata provider.
	ProviderRPS float64

	DataFile         string
	SnapshotInterval time.Duration

	// AutoDeleteAfter is how long index deliveries stay in the user's chat. Zero disables.
	AutoDeleteAfter time.Duration

	MongoURI      string
	MongoDatabase string

	MeiliHost   string
	MeiliAPIKey string
	MeiliIndex  string

	GeminiAPIKey string

	// ForceSubChannelID, when non-zero, gates queries on channel membership.
	ForceSubChannelID int64
	ForceSubInviteURL string

	AdminIDs []int64
	LogLevel string
}

// IsAdmin reports whether userID may run admin commands
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}
	return FromEnv()
}

// FromEnv reads configuration from environment variables only.
func FromEnv() (*Config, error) {
	var err error
	cfg := &Config{
		BotToken:          os.Getenv("TELEGRAM_BOT_TOKEN"),
		TMDBAPIKey:        os.Getenv("TMDB_API_KEY"),
		OMDbAPIKey:        os.Getenv("OMDB_API_KEY"),
		DataFile:          envOrDefault("DATA_FILE", "data/index.json"),
		MongoURI:          os.Getenv("MONGODB_URI"),
		MongoDatabase:     envOrDefault("MONGODB_DATABASE", "cineindex"),
		MeiliHost:         os.Getenv("MEILI_HOST"),
		MeiliAPIKey:       os.Getenv("MEILI_API_KEY"),
		MeiliIndex:        envOrDefault("MEILI_INDEX", "catalog"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		ForceSubInviteURL: os.Getenv("FORCE_SUB_INVITE_URL"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	channel := os.Getenv("PRIVATE_CHANNEL_ID")
	if channel == "" {
		return nil, fmt.Errorf("PRIVATE_CHANNEL_ID is required")
	}
	if cfg.SourceChannelID, err = strconv.ParseInt(channel, 10, 64); err != nil {
		return nil, fmt.Errorf("invalid PRIVATE_CHANNEL_ID: %w", err)
	}

	if v := os.Getenv("FORCE_SUB_CHANNEL_ID"); v != "" {
		if cfg.ForceSubChannelID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid FORCE_SUB_CHANNEL_ID: %w", err)
		}
	}

	if v := os.Getenv("BOT_DEBUG"); v != "" {
		if cfg.BotDebug, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid BOT_DEBUG: %w", err)
		}
	}

	if cfg.HTTPTimeout, err = durationEnv("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SnapshotInterval, err = durationEnv("SNAPSHOT_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AutoDeleteAfter, err = durationEnv("AUTO_DELETE_AFTER", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.ProviderRPS = 5
	if v := os.Getenv("PROVIDER_RPS"); v != "" {
		if cfg.ProviderRPS, err = strconv.ParseFloat(v, 64); err != nil || !(cfg.ProviderRPS > 0) || math.IsInf(cfg.ProviderRPS, 1) {
			return nil, fmt.Errorf("invalid PROVIDER_RPS: %q", v)
		}
	}

	if v := os.Getenv("ADMIN_IDS"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
			}
			cfg.AdminIDs = append(cfg.AdminIDs, id)
		}
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
