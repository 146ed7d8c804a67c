// Package documents implements the owner-scoped document operations behind the
// API: upload, listing, deletion, index statistics, and index rebuild.
package documents

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/scout/internal/blob"
	"github.com/hyperjump/scout/internal/cache"
	"github.com/hyperjump/scout/internal/extract"
	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/internal/queue"
	"github.com/hyperjump/scout/internal/storage"
	"github.com/hyperjump/scout/internal/vector"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 5
	MaxListLimit     = 100
)

// Notifier is woken after new work is queued. *worker.Worker satisfies it.
type Notifier interface {
	Notify()
}

type noopNotifier struct{}

func (noopNotifier) Notify() {}

// Service coordinates the record store, raw files, vectors, queue, and response cache.
type Service struct {
	records  storage.Storage
	blobs    blob.Store
	vectors  vector.Store
	queue    queue.Queue
	cache    *cache.Cache
	notifier Notifier
	logger   *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithNotifier sets who gets woken when documents are queued.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewService creates a document service. c may be nil when responses are not cached.
func NewService(records storage.Storage, blobs blob.Store, vectors vector.Store, q queue.Queue, c *cache.Cache, opts ...ServiceOption) *Service {
	s := &Service{
		records:  records,
		blobs:    blobs,
		vectors:  vectors,
		queue:    q,
		cache:    c,
		notifier: noopNotifier{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores the file, records it as pending, and queues it for ingestion.
// Validation failures return before anything is written.
func (s *Service) Upload(ctx context.Context, ownerID, fileName string, r io.Reader) (*models.Document, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, models.ErrOwnerRequired
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || r == nil {
		return nil, models.ErrFileRequired
	}
	if !extract.Supported(fileName) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, filepath.Ext(fileName))
	}
	body := bufio.NewReader(r)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", models.ErrFileRequired, fileName)
		}
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	path, err := s.blobs.Save(ctx, ownerID, fileName, body)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := &models.Document{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		FileName: fileName,
		FilePath: path,
		Status:   models.StatusPending,
	}
	if err := s.records.Create(ctx, doc); err != nil {
		s.removeFile(ctx, path)
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	if err := s.queue.Enqueue(ctx, models.NewQueueEntry(doc)); err != nil {
		if delErr := s.records.Delete(ctx, doc.ID); delErr != nil {
			s.logger.Warn("Failed to roll back document", zap.String("doc_id", doc.ID), zap.Error(delErr))
		}
		s.removeFile(ctx, path)
		return nil, fmt.Errorf("failed to queue document: %w", err)
	}

	s.logger.Info("Document uploaded",
		zap.String("doc_id", doc.ID),
		zap.String("owner_id", ownerID),
		zap.String("file", fileName))
	s.notifier.Notify()
	return doc, nil
}

// List returns one page of the owner's documents, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) (*models.DocumentPage, error) {
	if ownerID == "" {
		return nil, models.ErrOwnerRequired
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset = max(offset, 0)

	items, total, err := s.records.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return &models.DocumentPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Get returns the document if it exists and belongs to ownerID.
func (s *Service) Get(ctx context.Context, ownerID, docID string) (*models.Document, error) {
	if ownerID == "" {
		return nil, models.ErrOwnerRequired
	}
	doc, err := s.records.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, docID)
	}
	return doc, nil
}

// Delete removes the document's vectors, queue entries, file, and record.
func (s *Service) Delete(ctx context.Context, ownerID, docID string) error {
	doc, err := s.Get(ctx, ownerID, docID)
	if err != nil {
		return err
	}
	if err := s.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if err := s.queue.Remove(ctx, doc.ID); err != nil {
		s.logger.Warn("Failed to remove queue entry", zap.String("doc_id", doc.ID), zap.Error(err))
	}
	s.removeFile(ctx, doc.FilePath)
	if err := s.records.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	// A job finishing concurrently may have written points after the first pass.
	if err := s.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		s.logger.Warn("Failed to sweep vectors of deleted document", zap.String("doc_id", doc.ID), zap.Error(err))
	}
	s.invalidate(ownerID)

	s.logger.Info("Document deleted", zap.String("doc_id", doc.ID), zap.String("owner_id", ownerID))
	return nil
}

// DeleteAll removes every document of ownerID and returns how many records were deleted.
func (s *Service) DeleteAll(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, models.ErrOwnerRequired
	}
	docs, err := s.records.ListAllByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	if err := s.vectors.DeleteByOwner(ctx, ownerID); err != nil {
		return 0, fmt.Errorf("failed to delete vectors: %w", err)
	}
	for _, doc := range docs {
		if err := s.queue.Remove(ctx, doc.ID); err != nil {
			s.logger.Warn("Failed to remove queue entry", zap.String("doc_id", doc.ID), zap.Error(err))
		}
		s.removeFile(ctx, doc.FilePath)
	}
	n, err := s.records.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	if err := s.vectors.DeleteByOwner(ctx, ownerID); err != nil {
		s.logger.Warn("Failed to sweep vectors of deleted documents", zap.String("owner_id", ownerID), zap.Error(err))
	}
	s.invalidate(ownerID)

	s.logger.Info("Deleted all documents", zap.String("owner_id", ownerID), zap.Int64("count", n))
	return int(n), nil
}

// Stats reports per-status document counts, the owner's vector count, and the queue length.
func (s *Service) Stats(ctx context.Context, ownerID string) (*models.IndexStats, error) {
	if ownerID == "" {
		return nil, models.ErrOwnerRequired
	}
	counts, err := s.records.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	stats := &models.IndexStats{OwnerID: ownerID, ByStatus: make(map[models.Status]int64, 4)}
	for _, st := range []models.Status{models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed} {
		stats.ByStatus[st] = counts[st]
	}
	for _, n := range counts {
		stats.TotalDocuments += n
	}
	if stats.VectorPoints, err = s.vectors.Count(ctx, ownerID); err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}
	if stats.QueueLength, err = s.queue.Len(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue length: %w", err)
	}
	return stats, nil
}

// Rebuild drops the owner's vectors, resets every document to pending, and
// queues them again. It returns the number queued without waiting for ingestion.
func (s *Service) Rebuild(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, models.ErrOwnerRequired
	}
	if err := s.vectors.DeleteByOwner(ctx, ownerID); err != nil {
		s.logger.Error("Failed to delete vectors before rebuild", zap.String("owner_id", ownerID), zap.Error(err))
	}
	docs, err := s.records.ResetOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset documents: %w", err)
	}
	for _, doc := range docs {
		// One entry per document even when a rebuild is repeated.
		if err := s.queue.Remove(ctx, doc.ID); err != nil {
			return 0, fmt.Errorf("failed to clear queue entry for %s: %w", doc.ID, err)
		}
		if err := s.queue.Enqueue(ctx, models.NewQueueEntry(doc)); err != nil {
			return 0, fmt.Errorf("failed to queue %s: %w", doc.ID, err)
		}
	}
	s.invalidate(ownerID)

	s.logger.Info("Index rebuild queued", zap.String("owner_id", ownerID), zap.Int("documents", len(docs)))
	s.notifier.Notify()
	return len(docs), nil
}

func (s *Service) invalidate(ownerID string) {
	if s.cache == nil {
		return
	}
	if n := s.cache.Invalidate(ownerID); n > 0 {
		s.logger.Debug("Invalidated cached answers", zap.String("owner_id", ownerID), zap.Int("entries", n))
	}
}

func (s *Service) removeFile(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.blobs.Remove(ctx, path); err != nil {
		s.logger.Warn("Failed to remove file", zap.String("path", path), zap.Error(err))
	}
}
