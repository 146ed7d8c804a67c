package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/scout/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_owner_created ON documents(owner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_documents_owner_status ON documents(owner_id, status);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `id, owner_id, file_name, file_path, status, error, metadata, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var status string
	var metadataJSON sql.NullString
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.FileName, &doc.FilePath, &status, &doc.Error,
		&metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Status = models.Status(status)
	if metadataJSON.Valid && metadataJSON.String != "" {
		var meta models.DocumentMetadata
		if err := json.Unmarshal([]byte(metadataJSON.String), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		doc.Metadata = &meta
	}
	return &doc, nil
}

func marshalMetadata(meta *models.DocumentMetadata) (sql.NullString, error) {
	if meta == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// Create inserts a document. Status defaults to pending; timestamps are set when zero.
func (s *SQLiteStorage) Create(ctx context.Context, doc *models.Document) error {
	metadataJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.OwnerID, doc.FileName, doc.FilePath, string(doc.Status), doc.Error,
		metadataJSON, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// Get returns a document by ID.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateStatus writes status, error, and metadata for a document.
func (s *SQLiteStorage) UpdateStatus(ctx context.Context, id string, status models.Status, errMsg string, meta *models.DocumentMetadata) error {
	metadataJSON, err := marshalMetadata(meta)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, metadataJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return nil
}

// FinishProcessing writes a terminal status if the document is still processing.
func (s *SQLiteStorage) FinishProcessing(ctx context.Context, id string, status models.Status, errMsg string, meta *models.DocumentMetadata) error {
	metadataJSON, err := marshalMetadata(meta)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ?, metadata = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), errMsg, metadataJSON, time.Now().UTC(), id, string(models.StatusProcessing),
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notProcessing(ctx, s, id)
	}
	return nil
}

// ListByOwner returns documents for ownerID, newest first, with the owner's total count.
func (s *SQLiteStorage) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Document, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE owner_id = ?`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	docs, err := s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ListAllByOwner returns every document of ownerID in upload order.
func (s *SQLiteStorage) ListAllByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = ? ORDER BY created_at, rowid`,
		ownerID,
	)
}

// ResetOwner moves all of ownerID's documents back to pending in one transaction.
func (s *SQLiteStorage) ResetOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = '', metadata = NULL, updated_at = ? WHERE owner_id = ?`,
		string(models.StatusPending), time.Now().UTC(), ownerID,
	); err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = ? ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, err
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return docs, nil
}

// CountByStatus returns the number of ownerID's documents per status.
func (s *SQLiteStorage) CountByStatus(ctx context.Context, ownerID string) (map[models.Status]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM documents WHERE owner_id = ? GROUP BY status`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

// Delete removes a document by ID. Deleting a missing document is not an error.
func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// DeleteByOwner removes all of ownerID's documents and returns how many were removed.
func (s *SQLiteStorage) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) queryDocuments(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

func collectDocuments(rows *sql.Rows) ([]*models.Document, error) {
	defer rows.Close()
	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
