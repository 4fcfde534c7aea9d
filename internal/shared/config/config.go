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

	DatabaseURL string
	QueueURL    string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMTimeout  time.Duration

	OCRProvider string
	OCRModel    string
	OCRAPIKey   string
	OCRTimeout  time.Duration

	// Upload validation bounds. Files beyond these never reach the pipeline.
	MaxUploadBytes int64
	MaxPages       int

	// Pipeline tunables. Operational defaults, not contracts.
	AnalysisTextLimit int
	RetryMaxAttempts  int
	RetryBaseDelay    time.Duration
	UserRetryLimit    int
	ClaimTimeout      time.Duration

	QuotaDocsPerMonth int
	QuotaStorageBytes int64

	PollMinInterval   time.Duration
	WorkerConcurrency int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),

		DatabaseURL: dbURL,
		QueueURL:    getEnv("SQS_QUEUE_URL", ""),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		LLMProvider: getEnv("LLM_PROVIDER", "openai"),
		LLMModel:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMTimeout:  getEnvDuration("LLM_TIMEOUT", 120*time.Second),

		OCRProvider: getEnv("OCR_PROVIDER", "openrouter"),
		OCRModel:    getEnv("OCR_MODEL", "qwen/qwen2.5-vl-72b-instruct"),
		OCRAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		OCRTimeout:  getEnvDuration("OCR_TIMEOUT", 120*time.Second),

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		MaxPages:       getEnvInt("MAX_PAGES", 50),

		AnalysisTextLimit: getEnvInt("ANALYSIS_TEXT_LIMIT", 48000),
		RetryMaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:    getEnvDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		UserRetryLimit:    getEnvInt("USER_RETRY_LIMIT", 3),
		ClaimTimeout:      getEnvDuration("CLAIM_TIMEOUT", 20*time.Minute),

		QuotaDocsPerMonth: getEnvInt("QUOTA_DOCS_PER_MONTH", 25),
		QuotaStorageBytes: getEnvInt64("QUOTA_STORAGE_BYTES", 200<<20),

		PollMinInterval:   getEnvDuration("POLL_MIN_INTERVAL", 2*time.Second),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
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
	if err != nil {
		log.Printf("config: %s invalid int %q, using default", key, raw)
		return def
	}
	return val
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("config: %s invalid int %q, using default", key, raw)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: %s invalid duration %q, using default", key, raw)
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
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
