package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
)

//go:embed recognition.yaml
var recognitionYAML []byte

type Config struct {
	Database    DatabaseConfig
	Embedding   EmbeddingConfig
	Recognition RecognitionConfig
	Auth        AuthConfig
	Web         WebConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the HNSW index (optional, if empty index is rebuilt on startup)
}

type EmbeddingConfig struct {
	URL string // embedding server base URL, defaults to http://localhost:8000
	Dim int    // embedding vector length, defaults to 128
}

type AuthConfig struct {
	Secret       string // HMAC secret for signing access tokens
	TokenTTLMins int    // token lifetime in minutes (default 60)
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins beyond localhost
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envList reads a comma-separated environment variable into a slice,
// dropping empty entries.
func envList(key string) []string {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

func Load() *Config {
	rec := loadRecognitionDefaults()

	// Env overrides for the recognition policy.
	rec.Threshold = envFloat("MATCH_THRESHOLD", rec.Threshold)
	rec.Dim = envInt("EMBEDDING_DIM", rec.Dim)
	rec.MinImages = envInt("MIN_FACE_IMAGES", rec.MinImages)
	rec.MaxImages = envInt("MAX_FACE_IMAGES", rec.MaxImages)

	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: rec.Dim,
		},
		Recognition: rec,
		Auth: AuthConfig{
			Secret:       os.Getenv("JWT_SECRET"),
			TokenTTLMins: envInt("TOKEN_TTL_MINUTES", 60),
		},
		Web: WebConfig{
			Host:           os.Getenv("WEB_HOST"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}
