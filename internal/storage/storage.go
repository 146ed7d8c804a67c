// Package storage defines the document record store and its SQLite and Postgres implementations.
package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
	"go.uber.org/zap"
)

// Storage persists document records. Implementations must make single-document
// updates atomic. Get returns models.ErrNotFound for unknown ids.
type Storage interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	// UpdateStatus sets status, error message, and metadata in one write. An empty
	// errMsg clears the error; a nil meta clears the metadata.
	UpdateStatus(ctx context.Context, id string, status models.Status, errMsg string, meta *models.DocumentMetadata) error
	// FinishProcessing is UpdateStatus applied only while the document is still
	// processing. It returns models.ErrStatusChanged if the document moved on and
	// models.ErrNotFound if it was deleted.
	FinishProcessing(ctx context.Context, id string, status models.Status, errMsg string, meta *models.DocumentMetadata) error
	// ListByOwner returns one page of the owner's documents, newest first, and the owner's total.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Document, int64, error)
	ListAllByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
	// ResetOwner moves every document of the owner back to pending with error and
	// metadata cleared, and returns the reset documents.
	ResetOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
	CountByStatus(ctx context.Context, ownerID string) (map[models.Status]int64, error)
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// notProcessing explains why a conditional update matched no row.
func notProcessing(ctx context.Context, s Storage, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is %s", models.ErrStatusChanged, id, doc.Status)
}

// New opens the record store selected by cfg.Driver.
func New(cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Driver {
	case "sqlite", "":
		s, err := NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStorage(cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, postgres)", cfg.Driver)
	}
}
