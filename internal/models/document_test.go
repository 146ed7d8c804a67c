package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
	if Status("archived").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestQueueEntry_JSONLayout(t *testing.T) {
	doc := &Document{ID: "d1", OwnerID: "u1", FileName: "a.pdf", FilePath: "/tmp/u1/1_a.pdf"}
	entry := NewQueueEntry(doc)
	if entry.Status != StatusPending {
		t.Errorf("status: got %s", entry.Status)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"docId":"d1"`, `"userId":"u1"`, `"filePath"`, `"fileName":"a.pdf"`, `"status":"pending"`, `"timestamp"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("missing %s in %s", key, data)
		}
	}
}

func TestAnswer_Clone(t *testing.T) {
	a := &Answer{Answer: "x", Sources: []Source{{DocID: "d1", PageNo: 2}}}
	c := a.Clone()
	c.Sources[0].PageNo = 9
	c.Cached = true
	if a.Sources[0].PageNo != 2 || a.Cached {
		t.Error("clone shares state with original")
	}
	var nilAnswer *Answer
	if nilAnswer.Clone() != nil {
		t.Error("nil clone should be nil")
	}
}

func TestEvidence_Source(t *testing.T) {
	e := Evidence{DocID: "d", FileName: "f.pdf", PageNo: 3, TotalPages: 4, Lines: LineRange{From: 1, To: 5}, Text: "body", Score: 0.5}
	s := e.Source()
	if s.DocID != "d" || s.PageNo != 3 || s.Lines.To != 5 || s.Score != 0.5 {
		t.Errorf("got %+v", s)
	}
}
