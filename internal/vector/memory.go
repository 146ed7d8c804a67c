package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/scout/internal/models"
)

// MemoryStore is an in-memory Store using brute-force cosine search.
// Suitable for tests and single-process deployments without Qdrant.
type MemoryStore struct {
	dimensions int
	points     map[string]models.ChunkRecord
	order      []string
	mu         sync.RWMutex
}

// NewMemoryStore creates an empty store for vectors of the given dimension.
func NewMemoryStore(dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryStore{dimensions: dimensions, points: make(map[string]models.ChunkRecord)}, nil
}

// EnsureCollection is a no-op.
func (m *MemoryStore) EnsureCollection(ctx context.Context) error { return nil }

// Upsert inserts or replaces points by ID.
func (m *MemoryStore) Upsert(ctx context.Context, points []models.ChunkRecord) error {
	if err := validatePoints(points, m.dimensions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		p.Vector = vec
		if _, ok := m.points[p.ID]; !ok {
			m.order = append(m.order, p.ID)
		}
		m.points[p.ID] = p
	}
	return nil
}

// Search ranks only ownerID's points by cosine similarity.
func (m *MemoryStore) Search(ctx context.Context, query []float32, limit int, ownerID string) ([]Match, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if len(query) != m.dimensions {
		return nil, &DimensionError{Got: len(query), Want: m.dimensions}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []Match{}, nil
	}
	matches := make([]Match, 0)
	for _, id := range m.order {
		p := m.points[id]
		if p.OwnerID != ownerID {
			continue
		}
		chunk := p
		chunk.Vector = nil
		matches = append(matches, Match{ID: id, Score: CosineSimilarity(query, p.Vector), Chunk: chunk})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// DeleteByOwner removes every point of ownerID.
func (m *MemoryStore) DeleteByOwner(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	m.deleteWhere(func(p models.ChunkRecord) bool { return p.OwnerID == ownerID })
	return nil
}

// DeleteByDocument removes every point of docID.
func (m *MemoryStore) DeleteByDocument(ctx context.Context, docID string) error {
	m.deleteWhere(func(p models.ChunkRecord) bool { return p.DocID == docID })
	return nil
}

// DeleteByIDs removes the given points.
func (m *MemoryStore) DeleteByIDs(ctx context.Context, ids []string) error {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	m.deleteWhere(func(p models.ChunkRecord) bool { return set[p.ID] })
	return nil
}

func (m *MemoryStore) deleteWhere(match func(models.ChunkRecord) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	for _, id := range m.order {
		if match(m.points[id]) {
			delete(m.points, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// Count returns the number of points for ownerID, or all points when ownerID is empty.
func (m *MemoryStore) Count(ctx context.Context, ownerID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ownerID == "" {
		return uint64(len(m.points)), nil
	}
	var n uint64
	for _, p := range m.points {
		if p.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error { return nil }
