package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	GCSBucket       string
	GCSProjectID    string

	DatabaseURL string
	SQSQueueURL string

	VertexProjectID string
	VertexLocation  string
	VertexModel     string
	VertexTimeout   time.Duration

	HistoryTTL        time.Duration
	HistoryMaxItems   int
	MinPasswordLength int
	PairingTTL        time.Duration
	SignedURLTTL      time.Duration
	AdminPassword     string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		GCSProjectID:    getEnv("GCS_PROJECT_ID", ""),

		DatabaseURL: dbURL,
		SQSQueueURL: strings.TrimSpace(getEnv("SB_SQS_QUEUE_URL", "")),

		VertexProjectID: getEnv("VERTEX_PROJECT_ID", ""),
		VertexLocation:  getEnv("VERTEX_LOCATION", "asia-northeast1"),
		VertexModel:     getEnv("VERTEX_MODEL", "gemini-2.5-pro"),
		VertexTimeout:   time.Duration(getEnvInt("VERTEX_TIMEOUT_SECONDS", 300)) * time.Second,

		HistoryTTL:        time.Duration(getEnvInt("HISTORY_TTL_HOURS", 24)) * time.Hour,
		HistoryMaxItems:   getEnvInt("HISTORY_MAX_ITEMS", 10),
		MinPasswordLength: getEnvInt("MIN_PASSWORD_LENGTH", 4),
		PairingTTL:        time.Duration(getEnvInt("PAIRING_TTL_MINUTES", 10)) * time.Minute,
		SignedURLTTL:      time.Duration(getEnvInt("SIGNED_URL_TTL_MINUTES", 60)) * time.Minute,
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid int %q, using default %d", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "gcs":
		return "gcs"
	default:
		return "local"
	}
}
