package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend kinds supported for the remote gallery library.
const (
	BackendHTTP = "http"
	BackendS3   = "s3"
)

// Config captures the runtime configuration for the gallery client.
type Config struct {
	AppPort       int
	DataDir       string
	LogLevel      string
	Backend       string
	BackendURL    string
	ObjectStore   ObjectStoreConfig
	SyncBatchSize int
	FetchPerSec   float64
	FetchBurst    int
	HTTPTimeout   time.Duration
}

// ObjectStoreConfig describes an S3-compatible bucket holding the media index
// and blobs.
type ObjectStoreConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	IndexKey  string
}

// Load reads configuration from environment variables, applying sensible defaults
// for local use while allowing overrides through environment variables.
func Load() (Config, error) {
	cfg := Config{
		AppPort:       getInt("GALLERY_PORT", 8790),
		DataDir:       getString("GALLERY_DATA_DIR", defaultDataDir()),
		LogLevel:      getString("GALLERY_LOG_LEVEL", "info"),
		Backend:       getString("GALLERY_BACKEND", BackendHTTP),
		BackendURL:    getString("GALLERY_BACKEND_URL", "http://localhost:8080"),
		SyncBatchSize: getInt("GALLERY_SYNC_BATCH", 60),
		FetchPerSec:   getFloat("GALLERY_FETCH_PER_SEC", 32),
		FetchBurst:    getInt("GALLERY_FETCH_BURST", 8),
		HTTPTimeout:   getDuration("GALLERY_HTTP_TIMEOUT", 30*time.Second),
		ObjectStore: ObjectStoreConfig{
			Bucket:    getString("GALLERY_S3_BUCKET", ""),
			Region:    getString("GALLERY_S3_REGION", "us-east-1"),
			Endpoint:  getString("GALLERY_S3_ENDPOINT", ""),
			AccessKey: getString("GALLERY_S3_ACCESS_KEY", ""),
			SecretKey: getString("GALLERY_S3_SECRET_KEY", ""),
			IndexKey:  getString("GALLERY_S3_INDEX_KEY", "index/library.json"),
		},
	}

	switch cfg.Backend {
	case BackendHTTP, BackendS3:
	default:
		return Config{}, fmt.Errorf("config: unknown backend %q", cfg.Backend)
	}

	if cfg.SyncBatchSize <= 0 {
		cfg.SyncBatchSize = 60
	}

	return cfg, nil
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/hearthside-gallery"
	}
	return ".gallery-cache"
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
