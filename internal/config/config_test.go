package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("S3_BUCKET", "netatmo-archives")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "netatmo-archives", cfg.S3Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3Region)
	assert.Empty(t, cfg.S3Endpoint)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "netatmo", cfg.MongoDatabase)
	assert.Equal(t, "stations", cfg.MongoCollection)
	assert.Equal(t, 1, cfg.MongoWriteConcern)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "netatmo-ingest-summary", cfg.KafkaSummaryTopic)
	assert.Equal(t, 2, cfg.FileWorkers)
	assert.Equal(t, 4, cfg.JSONWorkers)
	assert.Equal(t, 2, cfg.StoreConcurrency)
	assert.Equal(t, 4, cfg.DBConcurrency)
	assert.Equal(t, 3000, cfg.MinChunkSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("S3_BUCKET", "netatmo-archives")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MONGO_DATABASE", "custom-db")
	t.Setenv("MONGO_COLLECTION", "custom-stations")
	t.Setenv("MONGO_WRITE_CONCERN", "0")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SUMMARY_TOPIC", "custom-summary")
	t.Setenv("FILE_WORKERS", "8")
	t.Setenv("JSON_WORKERS", "16")
	t.Setenv("STORE_CONCURRENCY", "5")
	t.Setenv("DB_CONCURRENCY", "10")
	t.Setenv("MIN_CHUNK_SIZE", "500")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, "custom-db", cfg.MongoDatabase)
	assert.Equal(t, "custom-stations", cfg.MongoCollection)
	assert.Equal(t, 0, cfg.MongoWriteConcern)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-summary", cfg.KafkaSummaryTopic)
	assert.Equal(t, 8, cfg.FileWorkers)
	assert.Equal(t, 16, cfg.JSONWorkers)
	assert.Equal(t, 5, cfg.StoreConcurrency)
	assert.Equal(t, 10, cfg.DBConcurrency)
	assert.Equal(t, 500, cfg.MinChunkSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_MissingBucket(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("S3_BUCKET", "netatmo-archives")
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("S3_BUCKET", "netatmo-archives")
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidFileWorkers(t *testing.T) {
	t.Setenv("S3_BUCKET", "netatmo-archives")
	t.Setenv("FILE_WORKERS", "not-a-number")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FILE_WORKERS")
}

func TestLoad_ZeroStoreConcurrency(t *testing.T) {
	t.Setenv("S3_BUCKET", "netatmo-archives")
	t.Setenv("STORE_CONCURRENCY", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_CONCURRENCY")
}

func TestLoad_NegativeMinChunkSize(t *testing.T) {
	t.Setenv("S3_BUCKET", "netatmo-archives")
	t.Setenv("MIN_CHUNK_SIZE", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_CHUNK_SIZE")
}
