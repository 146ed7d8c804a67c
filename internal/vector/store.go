// Package vector stores chunk embeddings and answers owner-scoped similarity queries.
package vector

import (
	"context"
	"errors"

	"github.com/hyperjump/scout/internal/models"
)

// ErrOwnerRequired is returned by Search and Upsert when a point or query has no owner.
var ErrOwnerRequired = errors.New("vector: owner id is required")

// Store is a vector database holding chunk records. Every search is filtered
// by owner inside the store, never after ranking.
type Store interface {
	// EnsureCollection creates the collection and its payload indexes if missing.
	EnsureCollection(ctx context.Context) error
	// Upsert writes points and returns once the store has applied them.
	Upsert(ctx context.Context, points []models.ChunkRecord) error
	// Search returns up to limit matches owned by ownerID, best first.
	Search(ctx context.Context, vector []float32, limit int, ownerID string) ([]Match, error)
	DeleteByOwner(ctx context.Context, ownerID string) error
	DeleteByDocument(ctx context.Context, docID string) error
	DeleteByIDs(ctx context.Context, ids []string) error
	// Count returns the number of points for ownerID, or all points when ownerID is empty.
	Count(ctx context.Context, ownerID string) (uint64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Match is a single search hit. Chunk carries the stored payload without its vector.
type Match struct {
	ID    string
	Score float64
	Chunk models.ChunkRecord
	// Extra holds payload fields not mapped onto Chunk.
	Extra map[string]any
}

// Evidence converts m into the evidence handed to answer synthesis.
func (m Match) Evidence() models.Evidence {
	return models.Evidence{
		DocID:      m.Chunk.DocID,
		OwnerID:    m.Chunk.OwnerID,
		FileName:   m.Chunk.FileName,
		FilePath:   m.Chunk.FilePath,
		PageNo:     m.Chunk.PageNumber,
		TotalPages: m.Chunk.TotalPages,
		Lines:      m.Chunk.Lines,
		Text:       m.Chunk.Text,
		Score:      m.Score,
		Extra:      m.Extra,
	}
}

func validatePoints(points []models.ChunkRecord, dimensions int) error {
	for _, p := range points {
		if p.OwnerID == "" {
			return ErrOwnerRequired
		}
		if p.ID == "" {
			return errors.New("vector: point id is required")
		}
		if dimensions > 0 && len(p.Vector) != dimensions {
			return &DimensionError{Got: len(p.Vector), Want: dimensions}
		}
	}
	return nil
}
