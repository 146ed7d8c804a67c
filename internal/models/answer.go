package models

// NoResultsAnswer is returned when a search finds no evidence for the owner.
const NoResultsAnswer = "No relevant documents found."

// Evidence is a retrieved chunk with its provenance, handed to the answer synthesizer.
type Evidence struct {
	DocID      string         `json:"docId"`
	OwnerID    string         `json:"-"`
	FileName   string         `json:"fileName"`
	FilePath   string         `json:"filePath,omitempty"`
	PageNo     int            `json:"pageNo"`
	TotalPages int            `json:"totalPages,omitempty"`
	Lines      LineRange      `json:"lines"`
	Text       string         `json:"text,omitempty"`
	Score      float64        `json:"score"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Source is the citation form of evidence returned to callers.
type Source struct {
	DocID      string    `json:"docId"`
	FileName   string    `json:"fileName"`
	FilePath   string    `json:"filePath,omitempty"`
	PageNo     int       `json:"pageNo"`
	TotalPages int       `json:"totalPages,omitempty"`
	Lines      LineRange `json:"lines"`
	Score      float64   `json:"score"`
}

// Source returns the citation for e.
func (e Evidence) Source() Source {
	return Source{
		DocID:      e.DocID,
		FileName:   e.FileName,
		FilePath:   e.FilePath,
		PageNo:     e.PageNo,
		TotalPages: e.TotalPages,
		Lines:      e.Lines,
		Score:      e.Score,
	}
}

// Answer is the result of a question against an owner's documents.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Cached  bool     `json:"cached"`
}

// Clone returns a deep copy of a.
func (a *Answer) Clone() *Answer {
	if a == nil {
		return nil
	}
	out := &Answer{Answer: a.Answer, Cached: a.Cached, Sources: make([]Source, len(a.Sources))}
	copy(out.Sources, a.Sources)
	return out
}

// QueryRequest is the body of a question request.
type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}
