package answer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hyperjump/scout/internal/models"
)

// MockSynthesizer answers without a model by quoting the best evidence. It
// records every call for tests.
type MockSynthesizer struct {
	mu    sync.Mutex
	calls []MockCall
	err   error
}

// MockCall is one recorded Answer call.
type MockCall struct {
	Question string
	Evidence []models.Evidence
}

// NewMockSynthesizer returns a synthesizer that never fails.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// FailWith makes subsequent calls return err.
func (m *MockSynthesizer) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Answer returns the first line of the best evidence with its citation.
func (m *MockSynthesizer) Answer(ctx context.Context, question string, evidence []models.Evidence) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Question: question, Evidence: evidence})
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return "", err
	}
	if len(evidence) == 0 {
		return models.NoResultsAnswer, nil
	}
	best := evidence[0]
	line := strings.TrimSpace(strings.SplitN(best.Text, "\n", 2)[0])
	return fmt.Sprintf("%s [1] (Source: %s, Page %d)", line, best.FileName, best.PageNo), nil
}

// Calls returns a copy of the recorded calls.
func (m *MockSynthesizer) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
