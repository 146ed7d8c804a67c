// Package models defines core data structures for documents, queue entries, chunks, and answers.
package models

import "time"

// Status is the ingestion state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s ends an ingestion run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document is the metadata record for an uploaded file.
type Document struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"ownerId"`
	FileName  string            `json:"fileName"`
	FilePath  string            `json:"filePath"`
	Status    Status            `json:"status"`
	Error     string            `json:"error,omitempty"`
	Metadata  *DocumentMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// DocumentMetadata is filled in by the worker when ingestion completes.
type DocumentMetadata struct {
	TotalPages  int `json:"totalPages"`
	TotalChunks int `json:"totalChunks"`
}

// DocumentPage is one page of an owner's document listing.
type DocumentPage struct {
	Items  []*Document `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
