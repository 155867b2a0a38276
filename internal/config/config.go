package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every process-wide setting. Loaded once at startup and
// read-only afterwards.
type Config struct {
	Port           string
	DatabaseURL    string
	DBName         string
	GoogleClientID string
	AllowedOrigins []string
	ArtifactDir    string
}

// Load reads the optional .env file and the environment. DATABASE_URL being
// empty is not an error: it selects the no-op store at startup.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBName:         getEnv("DB_NAME", "fraudsynth"),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		AllowedOrigins: splitOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		ArtifactDir:    getEnv("ARTIFACT_DIR", "model_artifacts"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitOrigins(raw string) []string {
	out := []string{}
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
