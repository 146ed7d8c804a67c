package models

// Page is the text of one page produced by a document loader.
type Page struct {
	Text       string
	PageNumber int
	TotalPages int
}

// LineRange is an inclusive, 1-based line span within a page.
type LineRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Chunk is a bounded text window with its provenance.
type Chunk struct {
	Index      int
	Text       string
	PageNumber int
	TotalPages int
	Lines      LineRange
}

// ChunkRecord is a chunk ready to be written to the vector database.
// OwnerID is the tenant boundary and must always be set.
type ChunkRecord struct {
	ID         string
	DocID      string
	OwnerID    string
	FileName   string
	FilePath   string
	Text       string
	PageNumber int
	TotalPages int
	Lines      LineRange
	Vector     []float32
}
