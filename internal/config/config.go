// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
// Values are read once at startup from the environment (optionally seeded
// from a .env file). Runtime-tunable values live in the bot_config table and
// per-guild settings rows instead.
type Config struct {
	DataDir string // Base directory for the database and auxiliary files (always absolute)

	// Chat transport
	TransportToken string // Gateway auth token
	GatewayURL     string // Websocket gateway endpoint
	CommandPrefix  string // Chat command prefix (default "!")

	// World
	WeatherAnnounceChannel string // Optional channel ID for weather change announcements

	// LLM oracle
	LLMAPIKey           string
	LLMModel            string
	LLMMonthlyLimitUSD  float64
	LLMInputPricePer1K  float64 // USD per 1k input tokens
	LLMOutputPricePer1K float64 // USD per 1k output tokens

	// Word-chain dictionary
	DictBaseURL string // Remote dictionary base URL (may be empty: local only)
	DictToken   string // Optional shared token for the dictionary host

	// Web dashboard sync
	WebSyncURL      string
	WebSyncToken    string
	WebSyncInterval time.Duration

	// Glitch text flavor knobs
	GlitchForce    bool
	GlitchChance   float64
	GlitchSplit    float64
	GlitchMaxRatio float64

	LogLevel string
	Port     int // Admin HTTP server port
	DevMode  bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// ABYDOS_DATA_DIR if set, ./data otherwise, always resolved to an
	// absolute path and created if missing.
	dataDir := getEnv("ABYDOS_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir to absolute path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	port, err := strconv.Atoi(getEnv("ABYDOS_PORT", "8090"))
	if err != nil {
		return nil, fmt.Errorf("invalid ABYDOS_PORT: %w", err)
	}

	syncMinutes, err := strconv.Atoi(getEnv("ABYDOS_WEBSYNC_MINUTES", "10"))
	if err != nil || syncMinutes < 1 {
		return nil, fmt.Errorf("invalid ABYDOS_WEBSYNC_MINUTES: %v", err)
	}

	cfg := &Config{
		DataDir: absDataDir,

		TransportToken: os.Getenv("ABYDOS_TRANSPORT_TOKEN"),
		GatewayURL:     getEnv("ABYDOS_GATEWAY_URL", ""),
		CommandPrefix:  getEnv("ABYDOS_COMMAND_PREFIX", "!"),

		WeatherAnnounceChannel: os.Getenv("ABYDOS_WEATHER_CHANNEL"),

		LLMAPIKey:           os.Getenv("ABYDOS_LLM_API_KEY"),
		LLMModel:            getEnv("ABYDOS_LLM_MODEL", "claude-3-5-haiku-latest"),
		LLMMonthlyLimitUSD:  getEnvFloat("ABYDOS_LLM_MONTHLY_LIMIT_USD", 5.0),
		LLMInputPricePer1K:  getEnvFloat("ABYDOS_LLM_INPUT_PRICE_1K", 0.0008),
		LLMOutputPricePer1K: getEnvFloat("ABYDOS_LLM_OUTPUT_PRICE_1K", 0.004),

		DictBaseURL: os.Getenv("ABYDOS_DICT_BASE_URL"),
		DictToken:   os.Getenv("ABYDOS_DICT_TOKEN"),

		WebSyncURL:      os.Getenv("ABYDOS_WEBSYNC_URL"),
		WebSyncToken:    os.Getenv("ABYDOS_WEBSYNC_TOKEN"),
		WebSyncInterval: time.Duration(syncMinutes) * time.Minute,

		GlitchForce:    getEnv("ABYDOS_GLITCH_FORCE", "") == "1",
		GlitchChance:   getEnvFloat("ABYDOS_GLITCH_CHANCE", 0.02),
		GlitchSplit:    getEnvFloat("ABYDOS_GLITCH_SPLIT", 0.5),
		GlitchMaxRatio: getEnvFloat("ABYDOS_GLITCH_MAX_RATIO", 0.25),

		LogLevel: getEnv("ABYDOS_LOG_LEVEL", "info"),
		Port:     port,
		DevMode:  getEnv("ABYDOS_DEV_MODE", "") == "1",
	}

	return cfg, nil
}

// DatabasePath returns the path of the single game database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "abydos.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
