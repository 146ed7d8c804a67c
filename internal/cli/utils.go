// Package cli provides output formatting and an HTTP client for the scout command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json", or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its sources to w in the given format.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n", ans.Answer)
	if len(ans.Sources) == 0 {
		return nil
	}
	label := "Sources"
	if ans.Cached {
		label += " (cached)"
	}
	fmt.Fprintf(w, "\n%s:\n", label)
	for i, src := range ans.Sources {
		fmt.Fprintf(w, "  [%d] %s, page %d, lines %d-%d (score %.3f)\n",
			i+1, src.FileName, src.PageNo, src.Lines.From, src.Lines.To, src.Score)
	}
	return nil
}

// WriteDocument writes a single document record.
func WriteDocument(w io.Writer, doc *models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, doc)
	}
	fmt.Fprintf(w, "ID:      %s\n", doc.ID)
	fmt.Fprintf(w, "File:    %s\n", doc.FileName)
	fmt.Fprintf(w, "Status:  %s\n", doc.Status)
	if doc.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", utils.Truncate(doc.Error, 200))
	}
	if doc.Metadata != nil {
		fmt.Fprintf(w, "Pages:   %d\n", doc.Metadata.TotalPages)
		fmt.Fprintf(w, "Chunks:  %d\n", doc.Metadata.TotalChunks)
	}
	return nil
}

// WriteStats writes an owner's index statistics.
func WriteStats(w io.Writer, stats *models.IndexStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "Owner:          %s\n", stats.OwnerID)
	fmt.Fprintf(w, "Documents:      %d\n", stats.TotalDocuments)
	statuses := make([]string, 0, len(stats.ByStatus))
	for st := range stats.ByStatus {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Fprintf(w, "  %-12s  %d\n", st, stats.ByStatus[models.Status(st)])
	}
	fmt.Fprintf(w, "Vector points:  %d\n", stats.VectorPoints)
	fmt.Fprintf(w, "Queue length:   %d\n", stats.QueueLength)
	return nil
}
