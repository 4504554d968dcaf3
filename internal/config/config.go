package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Object-store (S3-compatible) settings.
	S3Bucket   string
	S3Region   string
	S3Endpoint string // optional override for S3-compatible non-AWS endpoints

	// Document-store (MongoDB) settings.
	MongoURI          string
	MongoDatabase     string
	MongoCollection   string
	MongoWriteConcern int

	// Optional run-summary publisher. Empty KafkaBrokers disables it.
	KafkaBrokers      []string
	KafkaSummaryTopic string

	// Pipeline concurrency tunables, per the two-stage worker pool.
	FileWorkers      int
	JSONWorkers      int
	StoreConcurrency int
	DBConcurrency    int
	MinChunkSize     int

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownStr := envOrDefault("SHUTDOWN_TIMEOUT", "10s")
	shutdownTimeout, err := time.ParseDuration(shutdownStr)
	if err != nil || shutdownTimeout <= 0 {
		return nil, errors.New("invalid SHUTDOWN_TIMEOUT")
	}

	fileWorkers, err := intOrDefault("FILE_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	jsonWorkers, err := intOrDefault("JSON_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	storeConcurrency, err := intOrDefault("STORE_CONCURRENCY", 2)
	if err != nil {
		return nil, err
	}
	dbConcurrency, err := intOrDefault("DB_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	minChunkSize, err := intOrDefault("MIN_CHUNK_SIZE", 3000)
	if err != nil {
		return nil, err
	}
	mongoWriteConcern, err := intOrDefault("MONGO_WRITE_CONCERN", 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		S3Bucket:   os.Getenv("S3_BUCKET"),
		S3Region:   envOrDefault("S3_REGION", "eu-west-1"),
		S3Endpoint: os.Getenv("S3_ENDPOINT"),

		MongoURI:          envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:     envOrDefault("MONGO_DATABASE", "netatmo"),
		MongoCollection:   envOrDefault("MONGO_COLLECTION", "stations"),
		MongoWriteConcern: mongoWriteConcern,

		KafkaBrokers:      parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSummaryTopic: envOrDefault("KAFKA_SUMMARY_TOPIC", "netatmo-ingest-summary"),

		FileWorkers:      fileWorkers,
		JSONWorkers:      jsonWorkers,
		StoreConcurrency: storeConcurrency,
		DBConcurrency:    dbConcurrency,
		MinChunkSize:     minChunkSize,

		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.S3Bucket == "" {
		return nil, errors.New("S3_BUCKET is required")
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	if cfg.FileWorkers <= 0 {
		return nil, errors.New("FILE_WORKERS must be positive")
	}
	if cfg.JSONWorkers <= 0 {
		return nil, errors.New("JSON_WORKERS must be positive")
	}
	if cfg.StoreConcurrency <= 0 {
		return nil, errors.New("STORE_CONCURRENCY must be positive")
	}
	if cfg.DBConcurrency <= 0 {
		return nil, errors.New("DB_CONCURRENCY must be positive")
	}
	if cfg.MinChunkSize <= 0 {
		return nil, errors.New("MIN_CHUNK_SIZE must be positive")
	}
	if cfg.MongoWriteConcern < 0 {
		return nil, errors.New("MONGO_WRITE_CONCERN must not be negative")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOrDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func parseBrokers(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
