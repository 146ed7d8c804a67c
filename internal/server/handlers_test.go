package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/scout/internal/answer"
	"github.com/hyperjump/scout/internal/blob"
	"github.com/hyperjump/scout/internal/cache"
	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/documents"
	"github.com/hyperjump/scout/internal/embedding"
	"github.com/hyperjump/scout/internal/extract"
	"github.com/hyperjump/scout/internal/indexer"
	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/internal/queue"
	"github.com/hyperjump/scout/internal/search"
	"github.com/hyperjump/scout/internal/storage"
	"github.com/hyperjump/scout/internal/testutil"
	"github.com/hyperjump/scout/internal/vector"
	"github.com/hyperjump/scout/internal/worker"
	"go.uber.org/zap"
)

const dims = 64

// downStore is a vector store whose server cannot be reached.
type downStore struct {
	*vector.MemoryStore
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	handler http.Handler
	queue   *queue.MemoryQueue
	worker  *worker.Worker
}

func newTestEnv(t *testing.T, vectors vector.Store) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "scout.db")
	cfg.Storage.UploadsDir = filepath.Join(dir, "uploads")
	cfg.Queue.Path = filepath.Join(dir, "queue.json")
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = dims
	cfg.LLM.Provider = "mock"
	cfg.Vector.Backend = "memory"
	cfg.Queue.Backend = "memory"
	config.ApplyDefaults(cfg)

	records, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = records.Close() })
	blobs, err := blob.NewDiskStore(cfg.Storage.UploadsDir)
	if err != nil {
		t.Fatal(err)
	}
	if vectors == nil {
		mem, err := vector.NewMemoryStore(dims)
		if err != nil {
			t.Fatal(err)
		}
		vectors = mem
	}
	embedder := embedding.NewMockEmbedder(dims)
	idx, err := indexer.NewIndexer(blobs, extract.NewLoader(), embedder, vectors, &cfg.Ingest)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(idx.Close)

	q := queue.NewMemoryQueue()
	responses := cache.New(cfg.Search.CacheTTL, cfg.Search.CacheSweepThreshold)
	w := worker.New(records, q, idx, &cfg.Worker)
	docs := documents.NewService(records, blobs, vectors, q, responses, documents.WithNotifier(w))
	engine := search.NewEngine(embedder, vectors, answer.NewMockSynthesizer(), responses, &cfg.Search)

	srv := NewServer(docs, engine, records, vectors, q, cfg, "test", zap.NewNop())
	return &testEnv{handler: srv.Handler(), queue: q, worker: w}
}

func (e *testEnv) do(t *testing.T, method, path, owner string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if owner != "" {
		r.Header.Set(OwnerHeader, owner)
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) upload(t *testing.T, owner, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return e.do(t, http.MethodPost, "/api/v1/documents", owner, &buf, mw.FormDataContentType())
}

func (e *testEnv) ask(t *testing.T, owner, query string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"query":%q,"topK":3}`, query)
	return e.do(t, http.MethodPost, "/api/v1/query", owner, strings.NewReader(body), "application/json")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestOwnerHeaderRequired(t *testing.T) {
	env := newTestEnv(t, nil)
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/documents"},
		{http.MethodPost, "/api/v1/query"},
		{http.MethodPost, "/api/v1/index/rebuild"},
		{http.MethodGet, "/api/v1/index/stats"},
		{http.MethodGet, "/api/v1/system/status"},
	}
	for _, p := range paths {
		w := env.do(t, p.method, p.path, "", nil, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: got %d, want 401", p.method, p.path, w.Code)
		}
	}
}

func TestDocumentLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pdf := testutil.PDF(t, []string{"Quarterly revenue grew by twelve percent", "Costs fell", "Outlook is stable"})

	w := env.upload(t, "alice", "report.pdf", pdf)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: got %d: %s", w.Code, w.Body.String())
	}
	doc := decode[models.Document](t, w)
	if doc.Status != models.StatusPending || doc.OwnerID != "alice" {
		t.Fatalf("upload: unexpected document %+v", doc)
	}

	if _, err := env.worker.ProcessQueue(ctx); err != nil {
		t.Fatal(err)
	}

	w = env.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID, "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}
	got := decode[models.Document](t, w)
	if got.Status != models.StatusCompleted || got.Metadata == nil || got.Metadata.TotalPages != 3 {
		t.Errorf("get: unexpected document %+v", got)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID, "bob", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("get as bob: got %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/documents?limit=10", "alice", nil, "")
	page := decode[models.DocumentPage](t, w)
	if page.Total != 1 || len(page.Items) != 1 || page.Limit != 10 {
		t.Errorf("list: unexpected page %+v", page)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/documents?limit=ten", "alice", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("list bad limit: got %d, want 400", w.Code)
	}

	w = env.ask(t, "alice", "quarterly revenue")
	if w.Code != http.StatusOK {
		t.Fatalf("query: got %d: %s", w.Code, w.Body.String())
	}
	ans := decode[models.Answer](t, w)
	if len(ans.Sources) == 0 || ans.Sources[0].FileName != "report.pdf" || ans.Cached {
		t.Errorf("query: unexpected answer %+v", ans)
	}
	if !strings.Contains(ans.Answer, "[1]") {
		t.Errorf("query: answer %q has no citation", ans.Answer)
	}
	if again := decode[models.Answer](t, env.ask(t, "alice", "Quarterly   revenue")); !again.Cached {
		t.Error("query: repeated question should be cached")
	}

	other := decode[models.Answer](t, env.ask(t, "bob", "quarterly revenue"))
	if other.Answer != models.NoResultsAnswer || len(other.Sources) != 0 {
		t.Errorf("query as bob: got %+v", other)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/documents/"+doc.ID, "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID, "alice", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
	after := decode[models.Answer](t, env.ask(t, "alice", "quarterly revenue"))
	if after.Answer != models.NoResultsAnswer || after.Cached {
		t.Errorf("query after delete: got %+v", after)
	}
}

func TestUploadErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	if w := env.upload(t, "alice", "notes.txt", []byte("plain text")); w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("txt upload: got %d, want 415", w.Code)
	}
	if w := env.upload(t, "alice", "empty.pdf", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty upload: got %d, want 400", w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/v1/documents", "alice", strings.NewReader("{}"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart upload: got %d, want 400", w.Code)
	}
	if n, _ := env.queue.Len(context.Background()); n != 0 {
		t.Errorf("rejected uploads were queued: %d entries", n)
	}
}

func TestQueryValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	if w := env.ask(t, "alice", "   "); w.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d, want 400", w.Code)
	}
	w := env.do(t, http.MethodPost, "/api/v1/query", "alice", strings.NewReader("{"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json: got %d, want 400", w.Code)
	}

	first := decode[models.Answer](t, env.ask(t, "alice", "anything"))
	if first.Answer != models.NoResultsAnswer || first.Sources == nil || first.Cached {
		t.Errorf("no documents: got %+v", first)
	}
}

func TestRebuildAndStats(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for _, name := range []string{"a.pdf", "b.pdf"} {
		if w := env.upload(t, "alice", name, testutil.PDF(t, []string{"Page text for " + name})); w.Code != http.StatusCreated {
			t.Fatalf("upload %s: got %d", name, w.Code)
		}
	}
	if _, err := env.worker.ProcessQueue(ctx); err != nil {
		t.Fatal(err)
	}

	stats := decode[models.IndexStats](t, env.do(t, http.MethodGet, "/api/v1/index/stats", "alice", nil, ""))
	if stats.TotalDocuments != 2 || stats.ByStatus[models.StatusCompleted] != 2 || stats.VectorPoints != 2 || stats.QueueLength != 0 {
		t.Errorf("stats: unexpected %+v", stats)
	}

	w := env.do(t, http.MethodPost, "/api/v1/index/rebuild", "alice", nil, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("rebuild: got %d", w.Code)
	}
	if resp := decode[RebuildResponse](t, w); resp.DocumentsQueued != 2 || resp.Status != "processing" {
		t.Errorf("rebuild: unexpected %+v", resp)
	}

	stats = decode[models.IndexStats](t, env.do(t, http.MethodGet, "/api/v1/index/stats", "alice", nil, ""))
	if stats.ByStatus[models.StatusPending] != 2 || stats.VectorPoints != 0 || stats.QueueLength != 2 {
		t.Errorf("stats after rebuild: unexpected %+v", stats)
	}

	if _, err := env.worker.ProcessQueue(ctx); err != nil {
		t.Fatal(err)
	}
	stats = decode[models.IndexStats](t, env.do(t, http.MethodGet, "/api/v1/index/stats", "alice", nil, ""))
	if stats.ByStatus[models.StatusCompleted] != 2 || stats.VectorPoints != 2 {
		t.Errorf("stats after reprocessing: unexpected %+v", stats)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/documents", "alice", nil, "")
	if got := decode[map[string]int](t, w); got["deleted"] != 2 {
		t.Errorf("delete all: got %v", got)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/health", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("health: got %d", w.Code)
	}
	resp := decode[HealthResponse](t, w)
	if resp.Status != healthy || resp.Services["database"] != healthy || resp.Services["vectorStore"] != healthy {
		t.Errorf("health: unexpected %+v", resp)
	}

	mem, err := vector.NewMemoryStore(dims)
	if err != nil {
		t.Fatal(err)
	}
	env = newTestEnv(t, downStore{mem})
	w = env.do(t, http.MethodGet, "/health", "", nil, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded health: got %d", w.Code)
	}
	resp = decode[HealthResponse](t, w)
	if resp.Status != degraded || resp.Services["vectorStore"] != unhealthy || resp.Services["database"] != healthy {
		t.Errorf("degraded health: unexpected %+v", resp)
	}
}

func TestSystemStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.upload(t, "alice", "a.pdf", testutil.PDF(t, []string{"text"})); w.Code != http.StatusCreated {
		t.Fatalf("upload: got %d", w.Code)
	}
	w := env.do(t, http.MethodGet, "/api/v1/system/status", "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp struct {
		Version     string              `json:"version"`
		QueueLength int                 `json:"queueLength"`
		DiskUsage   storage.UsageReport `json:"diskUsage"`
		Config      map[string]any      `json:"config"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Version != "test" || resp.QueueLength != 1 {
		t.Errorf("status: unexpected %+v", resp)
	}
	if resp.DiskUsage.Paths["uploads"] == 0 || resp.DiskUsage.Total == 0 {
		t.Errorf("status: uploads should use disk, got %+v", resp.DiskUsage)
	}
	if resp.Config["vectorBackend"] != "memory" {
		t.Errorf("status: config %v", resp.Config)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrEmptyQuery, http.StatusBadRequest},
		{fmt.Errorf("upload: %w", models.ErrFileRequired), http.StatusBadRequest},
		{models.ErrOwnerRequired, http.StatusBadRequest},
		{fmt.Errorf("%w: x", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: .txt", models.ErrUnsupportedFormat), http.StatusUnsupportedMediaType},
		{errors.New("qdrant query failed"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
