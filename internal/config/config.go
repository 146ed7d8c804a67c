// Package config provides configuration loading and structs for the Scout server and worker.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Queue     QueueConfig     `yaml:"queue"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Vector    VectorConfig    `yaml:"vector"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Worker    WorkerConfig    `yaml:"worker"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// StorageConfig selects the document record store and the raw file store.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver       string      `yaml:"driver"`
	DatabasePath string      `yaml:"database_path"`
	DSN          string      `yaml:"dsn"`
	// Blob is "disk" or "minio".
	Blob       string      `yaml:"blob"`
	UploadsDir string      `yaml:"uploads_dir"`
	Minio      MinioConfig `yaml:"minio"`
}

// MinioConfig holds S3-compatible object storage settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// QueueConfig selects the persistent work queue backend.
type QueueConfig struct {
	// Backend is "file" or "badger".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// EmbeddingConfig holds the OpenAI-compatible embedding provider settings.
type EmbeddingConfig struct {
	// Provider is "openai" or "mock".
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cache_size"`
}

// LLMConfig holds the chat model used to synthesize answers.
type LLMConfig struct {
	// Provider is "openai" or "mock".
	Provider     string        `yaml:"provider"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key"`
	Temperature  float64       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// VectorConfig selects and configures the vector database.
type VectorConfig struct {
	// Backend is "qdrant" or "memory".
	Backend    string        `yaml:"backend"`
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	UseTLS     bool          `yaml:"use_tls"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// IngestConfig holds chunking settings.
type IngestConfig struct {
	ChunkSize        int `yaml:"chunk_size"`
	ChunkOverlap     int `yaml:"chunk_overlap"`
	EmbedConcurrency int `yaml:"embed_concurrency"`
}

// WorkerConfig holds ingestion worker settings.
type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	JobTimeout   time.Duration `yaml:"job_timeout"`
	WatchQueue   *bool         `yaml:"watch_queue"`
}

// WatchQueueOrDefault returns whether queue file changes trigger a drain; defaults to true when unset.
func (w *WorkerConfig) WatchQueueOrDefault() bool {
	if w.WatchQueue != nil {
		return *w.WatchQueue
	}
	return true
}

// SearchConfig holds retrieval and response cache settings.
type SearchConfig struct {
	DefaultTopK         int           `yaml:"default_top_k"`
	MaxTopK             int           `yaml:"max_top_k"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	CacheSweepThreshold int           `yaml:"cache_sweep_threshold"`
	DedupeInflight      *bool         `yaml:"dedupe_inflight"`
}

// DedupeInflightOrDefault returns whether concurrent identical queries share work; defaults to true.
func (s *SearchConfig) DedupeInflightOrDefault() bool {
	if s.DedupeInflight != nil {
		return *s.DedupeInflight
	}
	return true
}

// Load reads and parses the config file at path, loads an optional .env file next to it,
// applies SCOUT_* environment overrides, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	envFile := filepath.Join(configDir, ".env")
	if _, statErr := os.Stat(envFile); statErr == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.UploadsDir = expandPath(cfg.Storage.UploadsDir, configDir)
	cfg.Queue.Path = expandPath(cfg.Queue.Path, configDir)

	return &cfg, nil
}

// ApplyEnv overrides secrets and endpoints from SCOUT_* environment variables.
// Only non-empty variables are applied.
func ApplyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Storage.DSN, "SCOUT_DATABASE_DSN")
	set(&cfg.Storage.Minio.AccessKey, "SCOUT_MINIO_ACCESS_KEY")
	set(&cfg.Storage.Minio.SecretKey, "SCOUT_MINIO_SECRET_KEY")
	set(&cfg.Embedding.BaseURL, "SCOUT_EMBEDDING_BASE_URL")
	set(&cfg.Embedding.APIKey, "SCOUT_EMBEDDING_API_KEY")
	set(&cfg.LLM.BaseURL, "SCOUT_LLM_BASE_URL")
	set(&cfg.LLM.APIKey, "SCOUT_LLM_API_KEY")
	set(&cfg.Vector.Host, "SCOUT_QDRANT_HOST")
	set(&cfg.Vector.APIKey, "SCOUT_QDRANT_API_KEY")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
