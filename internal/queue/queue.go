// Package queue implements the persistent work queue that hands uploaded
// documents from the request path to the ingestion worker.
package queue

import (
	"context"
	"fmt"

	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
	"go.uber.org/zap"
)

// Queue is a durable FIFO of ingestion jobs. Entries survive restarts until
// Remove is called for their document.
type Queue interface {
	Enqueue(ctx context.Context, entry models.QueueEntry) error
	// Drain returns a snapshot of all entries in enqueue order without removing them.
	Drain(ctx context.Context) ([]models.QueueEntry, error)
	// Remove deletes every entry for docID.
	Remove(ctx context.Context, docID string) error
	// MarkProcessing records that the worker claimed entry.
	MarkProcessing(ctx context.Context, entry models.QueueEntry) error
	// Ack deletes entry only. Entries queued later for the same document stay.
	Ack(ctx context.Context, entry models.QueueEntry) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// New opens the queue backend selected by cfg.Backend.
func New(cfg *config.QueueConfig, logger *zap.Logger) (Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "file", "":
		return NewFileQueue(cfg.Path, logger), nil
	case "badger":
		q, err := NewBadgerQueue(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return q, nil
	case "memory":
		return NewMemoryQueue(), nil
	default:
		return nil, fmt.Errorf("unknown queue backend: %s (supported: file, badger, memory)", cfg.Backend)
	}
}

func removeDoc(entries []models.QueueEntry, docID string) ([]models.QueueEntry, bool) {
	out := entries[:0]
	removed := false
	for _, e := range entries {
		if e.DocID == docID {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}

func ackEntry(entries []models.QueueEntry, target models.QueueEntry) ([]models.QueueEntry, bool) {
	out := entries[:0]
	removed := false
	for _, e := range entries {
		if e.Same(target) {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out, removed
}

func markEntry(entries []models.QueueEntry, target models.QueueEntry, status models.Status) bool {
	changed := false
	for i := range entries {
		if entries[i].Same(target) && entries[i].Status != status {
			entries[i].Status = status
			changed = true
		}
	}
	return changed
}
