package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/internal/storage"
	"go.uber.org/zap"
)

const (
	healthy   = "healthy"
	degraded  = "degraded"
	unhealthy = "unhealthy"

	healthTimeout = 5 * time.Second
)

type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// RebuildResponse is the body of POST /api/v1/index/rebuild.
type RebuildResponse struct {
	DocumentsQueued int    `json:"documentsQueued"`
	Status          string `json:"status"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.config.Server.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.respondError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
		default:
			s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		}
		return
	}
	defer file.Close()

	doc, err := s.docs.Upload(r.Context(), ownerFrom(r), header.Filename, file)
	if err != nil {
		s.fail(w, "Upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}
	page, err := s.docs.List(r.Context(), ownerFrom(r), limit, offset)
	if err != nil {
		s.fail(w, "List documents failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), ownerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "Get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.docs.Delete(r.Context(), ownerFrom(r), id); err != nil {
		s.fail(w, "Delete document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleDeleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	n, err := s.docs.DeleteAll(r.Context(), ownerFrom(r))
	if err != nil {
		s.fail(w, "Delete documents failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("Query request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	ans, err := s.engine.Answer(r.Context(), ownerFrom(r), req.Query, req.TopK)
	if err != nil {
		s.fail(w, "Query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	n, err := s.docs.Rebuild(r.Context(), ownerFrom(r))
	if err != nil {
		s.fail(w, "Rebuild failed", err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, RebuildResponse{DocumentsQueued: n, Status: "processing"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.docs.Stats(r.Context(), ownerFrom(r))
	if err != nil {
		s.fail(w, "Stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    healthy,
		Timestamp: time.Now().UTC(),
		Services: map[string]string{
			"api":         healthy,
			"database":    healthOf(ctx, s.records.Ping),
			"vectorStore": healthOf(ctx, s.vectors.Ping),
		},
	}
	status := http.StatusOK
	for name, state := range resp.Services {
		if state != healthy {
			s.logger.Warn("Health check failed", zap.String("service", name))
			resp.Status = degraded
			status = http.StatusServiceUnavailable
		}
	}
	s.respondJSON(w, status, resp)
}

func healthOf(ctx context.Context, ping func(context.Context) error) string {
	if err := ping(ctx); err != nil {
		return unhealthy
	}
	return healthy
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	queued, err := s.queue.Len(r.Context())
	if err != nil {
		s.logger.Error("Status: queue length failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"version":     s.version,
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"queueLength": queued,
	}

	paths := map[string]string{"queue": s.config.Queue.Path}
	if s.config.Storage.Driver == "sqlite" {
		paths["database"] = s.config.Storage.DatabasePath
	}
	if s.config.Storage.Blob == "disk" {
		paths["uploads"] = s.config.Storage.UploadsDir
	}
	if usage, err := storage.DiskUsage(paths); err == nil {
		resp["diskUsage"] = usage
	} else {
		s.logger.Warn("Status: disk usage failed", zap.Error(err))
	}

	resp["config"] = map[string]any{
		"storageDriver":   s.config.Storage.Driver,
		"blobStore":       s.config.Storage.Blob,
		"queueBackend":    s.config.Queue.Backend,
		"vectorBackend":   s.config.Vector.Backend,
		"collection":      s.config.Vector.Collection,
		"embeddingModel":  s.config.Embedding.Model,
		"dimensions":      s.config.Embedding.Dimensions,
		"llmModel":        s.config.LLM.Model,
		"chunkSize":       s.config.Ingest.ChunkSize,
		"chunkOverlap":    s.config.Ingest.ChunkOverlap,
		"defaultTopK":     s.config.Search.DefaultTopK,
		"maxTopK":         s.config.Search.MaxTopK,
		"cacheTTL":        s.config.Search.CacheTTL.String(),
		"dedupeInflight":  s.config.Search.DedupeInflightOrDefault(),
		"watchQueue":      s.config.Worker.WatchQueueOrDefault(),
		"workerPollEvery": s.config.Worker.PollInterval.String(),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyQuery),
		errors.Is(err, models.ErrOwnerRequired),
		errors.Is(err, models.ErrFileRequired):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
