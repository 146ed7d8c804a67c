package queue

import (
	"context"
	"sync"

	"github.com/hyperjump/scout/internal/models"
)

// MemoryQueue is a non-durable Queue for tests.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []models.QueueEntry
}

// NewMemoryQueue returns an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, entry models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
	return nil
}

func (q *MemoryQueue) Drain(ctx context.Context) ([]models.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out, nil
}

func (q *MemoryQueue) Remove(ctx context.Context, docID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries, _ = removeDoc(q.entries, docID)
	return nil
}

func (q *MemoryQueue) MarkProcessing(ctx context.Context, entry models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	markEntry(q.entries, entry, models.StatusProcessing)
	return nil
}

func (q *MemoryQueue) Ack(ctx context.Context, entry models.QueueEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries, _ = ackEntry(q.entries, entry)
	return nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}

func (q *MemoryQueue) Close() error { return nil }
