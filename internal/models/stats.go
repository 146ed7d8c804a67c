package models

// IndexStats summarises an owner's ingestion state.
type IndexStats struct {
	OwnerID        string           `json:"ownerId"`
	TotalDocuments int64            `json:"totalDocuments"`
	ByStatus       map[Status]int64 `json:"byStatus"`
	VectorPoints   uint64           `json:"vectorPoints"`
	QueueLength    int              `json:"queueLength"`
}
