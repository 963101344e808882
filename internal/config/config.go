package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	LogLevel      string
	// Intent catalog
	IntentsPath string
	// Classifier backend: "lexical" (built-in) or "openai"
	Scorer       string
	OpenAIAPIKey string
	Model        string
	Threshold    float64
	// Session lifecycle; zero disables expiry (sessions live for the process)
	SessionTTL time.Duration
	// Requests per minute per IP on /predict; zero disables rate limiting
	RateLimit int
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:          getEnvDefault("PORT", "8080"),
		AllowedOrigin: getEnvDefault("ALLOWED_ORIGIN", "*"),
		LogLevel:      getEnvDefault("LOG_LEVEL", "info"),
		IntentsPath:   getEnvDefault("INTENTS_PATH", "data/intents.json"),
		Scorer:        strings.ToLower(getEnvDefault("SCORER", "lexical")),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:         getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		Threshold:     getEnvFloatDefault("SCORE_THRESHOLD", 0.25),
		SessionTTL:    getEnvDurationDefault("SESSION_TTL", 0),
		RateLimit:     getEnvIntDefault("RATE_LIMIT", 60),
	}
	if cfg.Scorer == "openai" && cfg.OpenAIAPIKey == "" {
		log.Println("warning: SCORER=openai but OPENAI_API_KEY is not set; classification will fail until provided")
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloatDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
