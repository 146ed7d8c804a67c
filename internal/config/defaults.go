package config

import "time"

// DefaultSystemPrompt instructs the chat model to answer only from the numbered context blocks.
const DefaultSystemPrompt = `You are Scout, a research assistant that answers questions using only the document excerpts provided in the context.

Rules:
- Use only the numbered context blocks. If they do not contain the answer, say that the documents do not cover it.
- Cite every claim with the block number in square brackets, for example [1] or [2][3].
- Mention the file name and page when it helps the reader locate the passage.
- Be concise. Prefer short paragraphs or bullet points.`

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 50 << 20
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/scout/data/db/documents.db"
	}
	if cfg.Storage.Blob == "" {
		cfg.Storage.Blob = "disk"
	}
	if cfg.Storage.UploadsDir == "" {
		cfg.Storage.UploadsDir = "/usr/local/var/scout/data/uploads"
	}
	if cfg.Storage.Minio.Bucket == "" {
		cfg.Storage.Minio.Bucket = "scout-uploads"
	}
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = "file"
	}
	if cfg.Queue.Path == "" {
		if cfg.Queue.Backend == "badger" {
			cfg.Queue.Path = "/usr/local/var/scout/data/queue"
		} else {
			cfg.Queue.Path = "/usr/local/var/scout/data/queue.json"
		}
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.1"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.SystemPrompt == "" {
		cfg.LLM.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "qdrant"
	}
	if cfg.Vector.Host == "" {
		cfg.Vector.Host = "localhost"
	}
	if cfg.Vector.Port == 0 {
		cfg.Vector.Port = 6334
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "scout_chunks"
	}
	if cfg.Vector.Timeout == 0 {
		cfg.Vector.Timeout = 15 * time.Second
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.EmbedConcurrency == 0 {
		cfg.Ingest.EmbedConcurrency = 4
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 3 * time.Second
	}
	if cfg.Worker.JobTimeout == 0 {
		cfg.Worker.JobTimeout = 10 * time.Minute
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 50
	}
	if cfg.Search.CacheTTL == 0 {
		cfg.Search.CacheTTL = 60 * time.Second
	}
	if cfg.Search.CacheSweepThreshold == 0 {
		cfg.Search.CacheSweepThreshold = 1000
	}
}
