// Package indexer turns uploaded documents into embedded, owner-tagged chunks in the vector store.
package indexer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/scout/internal/models"
	"github.com/tmc/langchaingo/textsplitter"
)

// Chunker splits page text into overlapping character windows and records the
// page and line span each window came from.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// An overlap not smaller than the size is reduced to a fifth of the size.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Chunk splits every page and numbers the resulting chunks across the document.
// Pages with no text after preprocessing produce no chunks.
func (c *Chunker) Chunk(pages []models.Page) ([]models.Chunk, error) {
	chunks := make([]models.Chunk, 0)
	for _, page := range pages {
		text := Preprocess(page.Text)
		if text == "" {
			continue
		}
		parts, err := c.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", page.PageNumber, err)
		}
		cursor := 0
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			var lines models.LineRange
			lines, cursor = locate(text, part, cursor)
			chunks = append(chunks, models.Chunk{
				Index:      len(chunks),
				Text:       part,
				PageNumber: page.PageNumber,
				TotalPages: page.TotalPages,
				Lines:      lines,
			})
		}
	}
	return chunks, nil
}

// locate finds part in text at or after cursor and returns its 1-based line span
// and the offset to search from next. Chunks overlap, so the next search starts
// at this chunk's start rather than its end.
func locate(text, part string, cursor int) (models.LineRange, int) {
	idx := strings.Index(text[cursor:], part)
	if idx >= 0 {
		idx += cursor
	} else {
		idx = strings.Index(text, part)
	}
	if idx < 0 {
		return models.LineRange{From: 1, To: strings.Count(text, "\n") + 1}, cursor
	}
	from := strings.Count(text[:idx], "\n") + 1
	return models.LineRange{From: from, To: from + strings.Count(part, "\n")}, idx + 1
}
