package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/scout/internal/models"
	"go.uber.org/zap"
)

// FileQueue stores the queue as a JSON array in a single file. Every mutation
// rewrites the whole file through a temp file and rename.
type FileQueue struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileQueue returns a queue backed by the file at path. The file is created on first write.
func NewFileQueue(path string, logger *zap.Logger) *FileQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileQueue{path: path, logger: logger}
}

// Path returns the queue file location.
func (q *FileQueue) Path() string { return q.path }

// Enqueue appends entry.
func (q *FileQueue) Enqueue(ctx context.Context, entry models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.read()
	entries = append(entries, entry)
	return q.write(entries)
}

// Drain returns all entries in file order.
func (q *FileQueue) Drain(ctx context.Context) ([]models.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read(), nil
}

// Remove deletes entries for docID. The file is left untouched when nothing matches.
func (q *FileQueue) Remove(ctx context.Context, docID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, removed := removeDoc(q.read(), docID)
	if !removed {
		return nil
	}
	return q.write(entries)
}

// MarkProcessing sets the status of entry to processing.
func (q *FileQueue) MarkProcessing(ctx context.Context, entry models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.read()
	if !markEntry(entries, entry, models.StatusProcessing) {
		return nil
	}
	return q.write(entries)
}

// Ack deletes entry.
func (q *FileQueue) Ack(ctx context.Context, entry models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, removed := ackEntry(q.read(), entry)
	if !removed {
		return nil
	}
	return q.write(entries)
}

// Len returns the number of queued entries.
func (q *FileQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.read()), nil
}

// Close is a no-op.
func (q *FileQueue) Close() error { return nil }

// read loads the file. A missing or corrupt file reads as empty so a damaged
// queue never blocks new uploads; the next write replaces it.
func (q *FileQueue) read() []models.QueueEntry {
	data, err := os.ReadFile(q.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.QueueEntry{}
	}
	if err != nil {
		q.logger.Error("Failed to read queue file", zap.String("path", q.path), zap.Error(err))
		return []models.QueueEntry{}
	}
	if len(data) == 0 {
		return []models.QueueEntry{}
	}
	var entries []models.QueueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		q.logger.Error("Queue file is corrupt, treating as empty", zap.String("path", q.path), zap.Error(err))
		return []models.QueueEntry{}
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	return entries
}

func (q *FileQueue) write(entries []models.QueueEntry) error {
	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(q.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp queue file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write queue: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace queue file: %w", err)
	}
	return nil
}
