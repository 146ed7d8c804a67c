package models

import "time"

// QueueEntry is one pending ingestion job. The JSON field names are the
// persisted queue layout.
type QueueEntry struct {
	DocID     string    `json:"docId"`
	OwnerID   string    `json:"userId"`
	FilePath  string    `json:"filePath"`
	FileName  string    `json:"fileName"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// Same reports whether e and o are the same enqueued job. Status is ignored
// because it changes when the worker claims the entry.
func (e QueueEntry) Same(o QueueEntry) bool {
	return e.DocID == o.DocID && e.Timestamp.Equal(o.Timestamp)
}

// NewQueueEntry returns a pending entry for doc stamped with the current time.
func NewQueueEntry(doc *Document) QueueEntry {
	return QueueEntry{
		DocID:     doc.ID,
		OwnerID:   doc.OwnerID,
		FilePath:  doc.FilePath,
		FileName:  doc.FileName,
		Timestamp: time.Now().UTC(),
		Status:    StatusPending,
	}
}
