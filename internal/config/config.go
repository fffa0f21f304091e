package config

import (
	"os"
	"strings"
	"time"
)

const defaultIdleTTL = 2 * time.Hour

// Config collects server settings from environment variables. A .env file is
// loaded before this in main via godotenv.
type Config struct {
	Port string

	GeminiAPIKey string

	// Comma-separated detector sidecar URLs, tried in order.
	DetectorBaseURLs []string
	// Comma-separated delegates ("gpu", "cpu"), tried per URL. Lowercased on
	// load to match the sidecar contract.
	DetectorDelegates []string

	// Conversations idle past this TTL get dropped by the cleanup loop.
	ConversationIdleTTL time.Duration
}

// Load reads the config from the environment, filling defaults.
func Load() Config {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		ConversationIdleTTL: defaultIdleTTL,
	}

	if urls := os.Getenv("DETECTOR_BASE_URLS"); urls != "" {
		cfg.DetectorBaseURLs = splitList(urls)
	}
	if delegates := os.Getenv("DETECTOR_DELEGATES"); delegates != "" {
		cfg.DetectorDelegates = splitList(delegates)
		for i, d := range cfg.DetectorDelegates {
			cfg.DetectorDelegates[i] = strings.ToLower(d)
		}
	}
	if ttl := os.Getenv("CONVERSATION_IDLE_TTL"); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil && parsed > 0 {
			cfg.ConversationIdleTTL = parsed
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
