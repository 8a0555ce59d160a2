package config

import "os"

type Config struct {
	Port         string
	DatabaseDSN  string
	Env          string
	GeminiAPIKey string
	GeminiModel  string
	SpeechAPIKey string
	SpeechLocale string
}

// Load reads configuration from the environment with sensible defaults.
// Precedence: explicit env var > .env file (loaded by main) > default.
// An empty DatabaseDSN means a local sqlite file.
func Load() Config {
	cfg := Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", "")
	cfg.Env = getEnv("APP_ENV", "development")
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", "")
	cfg.GeminiModel = getEnv("GEMINI_MODEL", "")
	// the speech endpoint accepts the same key family; a dedicated one wins
	cfg.SpeechAPIKey = getEnv("SPEECH_API_KEY", cfg.GeminiAPIKey)
	cfg.SpeechLocale = getEnv("SPEECH_LOCALE", "de-DE")
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
