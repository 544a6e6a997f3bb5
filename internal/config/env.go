package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	// External document-understanding service. When the processor ids
	// are unset the ingestion pipeline falls back to local extraction.
	DocAIEndpoint     string
	DocAIProjectID    string
	DocAILocation     string
	LayoutProcessorID string
	FormProcessorID   string
	DocAIAPIKey       string

	AIAPIKey         string
	EmbedModel       string
	EmbedDim         int
	GenModel         string
	TokenEncoding    string
	SemanticChunking bool
	IngestWorkers    int

	Port string
}

// LoadConfig loads the environment variables and returns config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "medrag-patient-uploads"),

		DocAIEndpoint:     getEnv("DOCAI_ENDPOINT", ""),
		DocAIProjectID:    getEnv("DOCAI_PROJECT_ID", ""),
		DocAILocation:     getEnv("DOCAI_LOCATION", "us"),
		LayoutProcessorID: getEnv("LAYOUT_PROCESSOR_ID", ""),
		FormProcessorID:   getEnv("FORM_PROCESSOR_ID", ""),
		DocAIAPIKey:       getEnv("DOCAI_API_KEY", ""),

		AIAPIKey:         getEnv("GEMINI_API_KEY", ""),
		EmbedModel:       getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:         getEnvInt("EMBED_DIM", 768),
		GenModel:         getEnv("GEN_MODEL", "gemini-1.5-flash"),
		TokenEncoding:    getEnv("TOKEN_ENCODING", "cl100k_base"),
		SemanticChunking: getEnvBool("SEMANTIC_CHUNKING", true),
		IngestWorkers:    getEnvInt("INGEST_WORKERS", 2),

		Port: getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}
