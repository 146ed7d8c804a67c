// Package answer turns retrieved evidence into a cited natural-language answer.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
)

// Synthesizer writes an answer to question grounded only in evidence.
type Synthesizer interface {
	Answer(ctx context.Context, question string, evidence []models.Evidence) (string, error)
}

// New returns the synthesizer selected by cfg.Provider.
func New(cfg *config.LLMConfig) (Synthesizer, error) {
	switch cfg.Provider {
	case "openai", "":
		s, err := NewChatSynthesizer(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mock":
		return NewMockSynthesizer(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: openai, mock)", cfg.Provider)
	}
}

// BuildContext renders evidence as numbered blocks, best match first:
//
//	[1] (Source: report.pdf, Page 2, lines 4-9)
//	chunk text
func BuildContext(evidence []models.Evidence) string {
	var b strings.Builder
	for i, e := range evidence {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (Source: %s, Page %d", i+1, e.FileName, e.PageNo)
		if e.Lines.From > 0 {
			fmt.Fprintf(&b, ", lines %d-%d", e.Lines.From, e.Lines.To)
		}
		b.WriteString(")\n")
		b.WriteString(strings.TrimSpace(e.Text))
	}
	return b.String()
}

// BuildPrompt returns the user message for question over evidence.
func BuildPrompt(question string, evidence []models.Evidence) string {
	return "Context:\n" + BuildContext(evidence) + "\n\nQuestion: " + strings.TrimSpace(question)
}
