package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// documentRow is the gorm model for the documents table.
type documentRow struct {
	ID        string  `gorm:"primaryKey;type:text"`
	OwnerID   string  `gorm:"index:idx_documents_owner_created,priority:1;index:idx_documents_owner_status,priority:1;not null"`
	FileName  string  `gorm:"not null"`
	FilePath  string  `gorm:"not null"`
	Status    string  `gorm:"index:idx_documents_owner_status,priority:2;not null;default:'pending'"`
	Error     string  `gorm:"not null;default:''"`
	Metadata  *string `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"index:idx_documents_owner_created,priority:2"`
	UpdatedAt time.Time
}

func (documentRow) TableName() string { return "documents" }

// PostgresStorage implements Storage on Postgres through gorm.
type PostgresStorage struct {
	db *gorm.DB
}

// NewPostgresStorage connects to dsn and migrates the documents table.
func NewPostgresStorage(dsn string, logger *zap.Logger) (*PostgresStorage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(utils.NewStdLogger(logger), gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newPostgresStorage(db)
}

func newPostgresStorage(db *gorm.DB) (*PostgresStorage, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return &PostgresStorage{db: db}, nil
}

func toRow(doc *models.Document) (*documentRow, error) {
	row := &documentRow{
		ID:        doc.ID,
		OwnerID:   doc.OwnerID,
		FileName:  doc.FileName,
		FilePath:  doc.FilePath,
		Status:    string(doc.Status),
		Error:     doc.Error,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	meta, err := metadataString(doc.Metadata)
	if err != nil {
		return nil, err
	}
	row.Metadata = meta
	return row, nil
}

func (r *documentRow) toDocument() (*models.Document, error) {
	doc := &models.Document{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		FileName:  r.FileName,
		FilePath:  r.FilePath,
		Status:    models.Status(r.Status),
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Metadata != nil && *r.Metadata != "" {
		var meta models.DocumentMetadata
		if err := json.Unmarshal([]byte(*r.Metadata), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		doc.Metadata = &meta
	}
	return doc, nil
}

func metadataString(meta *models.DocumentMetadata) (*string, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	s := string(data)
	return &s, nil
}

func rowsToDocuments(rows []documentRow) ([]*models.Document, error) {
	docs := make([]*models.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Create inserts a document.
func (s *PostgresStorage) Create(ctx context.Context, doc *models.Document) error {
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	row, err := toRow(doc)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(row).Error
}

// Get returns a document by ID.
func (s *PostgresStorage) Get(ctx context.Context, id string) (*models.Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.toDocument()
}

// UpdateStatus writes status, error, and metadata for a document.
func (s *PostgresStorage) UpdateStatus(ctx context.Context, id string, status models.Status, errMsg string, meta *models.DocumentMetadata) error {
	metaStr, err := metadataString(meta)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&documentRow{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"error":      errMsg,
		"metadata":   metaStr,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return nil
}

// FinishProcessing writes a terminal status if the document is still processing.
func (s *PostgresStorage) FinishProcessing(ctx context.Context, id string, status models.Status, errMsg string, meta *models.DocumentMetadata) error {
	metaStr, err := metadataString(meta)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&documentRow{}).
		Where("id = ? AND status = ?", id, string(models.StatusProcessing)).
		Updates(map[string]any{
			"status":     string(status),
			"error":      errMsg,
			"metadata":   metaStr,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notProcessing(ctx, s, id)
	}
	return nil
}

// ListByOwner returns documents for ownerID, newest first, with the owner's total count.
func (s *PostgresStorage) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Document, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&documentRow{}).Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []documentRow
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	docs, err := rowsToDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ListAllByOwner returns every document of ownerID in upload order.
func (s *PostgresStorage) ListAllByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rowsToDocuments(rows)
}

// ResetOwner moves all of ownerID's documents back to pending in one transaction.
func (s *PostgresStorage) ResetOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	var rows []documentRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&documentRow{}).Where("owner_id = ?", ownerID).Updates(map[string]any{
			"status":     string(models.StatusPending),
			"error":      "",
			"metadata":   nil,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ?", ownerID).Order("created_at").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rowsToDocuments(rows)
}

// CountByStatus returns the number of ownerID's documents per status.
func (s *PostgresStorage) CountByStatus(ctx context.Context, ownerID string) (map[models.Status]int64, error) {
	var results []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&documentRow{}).
		Select("status, count(*) as count").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	counts := make(map[models.Status]int64, len(results))
	for _, r := range results {
		counts[models.Status(r.Status)] = r.Count
	}
	return counts, nil
}

// Delete removes a document by ID.
func (s *PostgresStorage) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&documentRow{}, "id = ?", id).Error
}

// DeleteByOwner removes all of ownerID's documents and returns how many were removed.
func (s *PostgresStorage) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&documentRow{})
	return result.RowsAffected, result.Error
}

// Ping checks the database connection.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *PostgresStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
