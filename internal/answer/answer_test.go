package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
)

var sampleEvidence = []models.Evidence{
	{DocID: "d1", FileName: "report.pdf", PageNo: 2, Lines: models.LineRange{From: 4, To: 9}, Text: "Revenue grew 12%.\nCosts were flat.", Score: 0.9},
	{DocID: "d2", FileName: "notes.docx", PageNo: 1, Text: "  Hiring is paused.  ", Score: 0.5},
}

func TestBuildContext(t *testing.T) {
	got := BuildContext(sampleEvidence)
	want := "[1] (Source: report.pdf, Page 2, lines 4-9)\nRevenue grew 12%.\nCosts were flat.\n\n" +
		"[2] (Source: notes.docx, Page 1)\nHiring is paused."
	if got != want {
		t.Errorf("BuildContext =\n%s\nwant\n%s", got, want)
	}
	if BuildContext(nil) != "" {
		t.Error("empty evidence should render empty context")
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("  How did revenue change? ", sampleEvidence[:1])
	if !strings.HasPrefix(p, "Context:\n[1]") {
		t.Errorf("prompt should start with the context: %q", p)
	}
	if !strings.HasSuffix(p, "\n\nQuestion: How did revenue change?") {
		t.Errorf("prompt should end with the question: %q", p)
	}
}

func TestMockSynthesizer(t *testing.T) {
	m := NewMockSynthesizer()
	got, err := m.Answer(context.Background(), "revenue?", sampleEvidence)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Revenue grew 12%. [1] (Source: report.pdf, Page 2)" {
		t.Errorf("got %q", got)
	}
	if len(m.Calls()) != 1 || m.Calls()[0].Question != "revenue?" {
		t.Errorf("calls not recorded: %+v", m.Calls())
	}

	m.FailWith(errors.New("boom"))
	if _, err := m.Answer(context.Background(), "q", sampleEvidence); err == nil {
		t.Error("expected injected error")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{"mock", config.LLMConfig{Provider: "mock"}, false},
		{"openai", config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", BaseURL: "http://localhost:1/v1"}, false},
		{"openai without model", config.LLMConfig{Provider: "openai"}, true},
		{"unknown", config.LLMConfig{Provider: "bard"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && s == nil {
				t.Error("expected synthesizer")
			}
		})
	}
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestChatSynthesizer_Answer(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" Revenue grew 12% [1]. "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	s, err := NewChatSynthesizer(&config.LLMConfig{
		BaseURL:      srv.URL + "/v1",
		Model:        "test-model",
		Timeout:      5 * time.Second,
		SystemPrompt: "Answer from context only.",
	})
	if err != nil {
		t.Fatal(err)
	}
	answer, err := s.Answer(context.Background(), "How did revenue change?", sampleEvidence)
	if err != nil {
		t.Fatal(err)
	}
	if answer != "Revenue grew 12% [1]." {
		t.Errorf("answer = %q", answer)
	}
	if got.Model != "test-model" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "Answer from context only." {
		t.Errorf("system message = %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || !strings.Contains(got.Messages[1].Content, "(Source: report.pdf, Page 2, lines 4-9)") {
		t.Errorf("user message = %+v", got.Messages[1])
	}
}

func TestChatSynthesizer_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
	}))
	defer srv.Close()

	s, err := NewChatSynthesizer(&config.LLMConfig{BaseURL: srv.URL, Model: "m", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Answer(context.Background(), "q", sampleEvidence); err == nil {
		t.Error("expected provider error")
	}
}
