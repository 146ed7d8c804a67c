package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
worker:
  poll_interval: 500ms
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Worker.PollInterval != 500*time.Millisecond {
		t.Errorf("poll_interval: got %s", cfg.Worker.PollInterval)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/documents.db"
  uploads_dir: "./data/uploads"
queue:
  path: "./data/queue.json"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"database_path", cfg.Storage.DatabasePath, filepath.Join(dir, "data", "db", "documents.db")},
		{"uploads_dir", cfg.Storage.UploadsDir, filepath.Join(dir, "data", "uploads")},
		{"queue.path", cfg.Queue.Path, filepath.Join(dir, "data", "queue.json")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("SCOUT_LLM_API_KEY", "sk-from-env")
	t.Setenv("SCOUT_QDRANT_HOST", "qdrant.internal")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  api_key: "from-file"
vector:
  host: "localhost"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("llm api key: got %q", cfg.LLM.APIKey)
	}
	if cfg.Vector.Host != "qdrant.internal" {
		t.Errorf("qdrant host: got %q", cfg.Vector.Host)
	}
}

func TestLoad_dotEnvNextToConfig(t *testing.T) {
	const key = "SCOUT_EMBEDDING_API_KEY"
	_ = os.Unsetenv(key)
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.APIKey != "from-dotenv" {
		t.Errorf("embedding api key: got %q", cfg.Embedding.APIKey)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults: got %+v", cfg.Server)
	}
	if cfg.Ingest.ChunkSize != 1000 || cfg.Ingest.ChunkOverlap != 200 {
		t.Errorf("chunking defaults: got %+v", cfg.Ingest)
	}
	if cfg.Worker.PollInterval != 3*time.Second {
		t.Errorf("poll interval: got %s", cfg.Worker.PollInterval)
	}
	if cfg.Search.DefaultTopK != 5 || cfg.Search.MaxTopK != 50 {
		t.Errorf("top k defaults: got %+v", cfg.Search)
	}
	if cfg.Search.CacheTTL != time.Minute || cfg.Search.CacheSweepThreshold != 1000 {
		t.Errorf("cache defaults: got ttl=%s sweep=%d", cfg.Search.CacheTTL, cfg.Search.CacheSweepThreshold)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Queue.Backend != "file" || filepath.Ext(cfg.Queue.Path) != ".json" {
		t.Errorf("queue defaults: got %+v", cfg.Queue)
	}
	if !cfg.Search.DedupeInflightOrDefault() || !cfg.Worker.WatchQueueOrDefault() {
		t.Error("dedupe and queue watching should default to true")
	}
	if cfg.LLM.SystemPrompt != DefaultSystemPrompt {
		t.Error("system prompt should default")
	}
}

func TestApplyDefaults_badgerQueuePath(t *testing.T) {
	cfg := &Config{Queue: QueueConfig{Backend: "badger"}}
	ApplyDefaults(cfg)
	if filepath.Ext(cfg.Queue.Path) != "" {
		t.Errorf("badger queue path should be a directory, got %s", cfg.Queue.Path)
	}
}

func TestApplyDefaults_keepsExplicitValues(t *testing.T) {
	off := false
	cfg := &Config{
		Ingest: IngestConfig{ChunkSize: 300, ChunkOverlap: 30},
		Search: SearchConfig{DefaultTopK: 8, DedupeInflight: &off},
	}
	ApplyDefaults(cfg)
	if cfg.Ingest.ChunkSize != 300 || cfg.Ingest.ChunkOverlap != 30 {
		t.Errorf("chunking overwritten: %+v", cfg.Ingest)
	}
	if cfg.Search.DefaultTopK != 8 {
		t.Errorf("top k overwritten: %d", cfg.Search.DefaultTopK)
	}
	if cfg.Search.DedupeInflightOrDefault() {
		t.Error("explicit dedupe_inflight=false should be kept")
	}
}
