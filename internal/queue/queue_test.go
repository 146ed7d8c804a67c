package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
	"go.uber.org/zap"
)

func entry(docID string) models.QueueEntry {
	return models.QueueEntry{
		DocID:     docID,
		OwnerID:   "alice",
		FilePath:  "/uploads/alice/" + docID + ".pdf",
		FileName:  docID + ".pdf",
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:    models.StatusPending,
	}
}

func backends(t *testing.T) map[string]Queue {
	t.Helper()
	dir := t.TempDir()
	bq, err := NewBadgerQueue(filepath.Join(dir, "badger"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = bq.Close() })
	return map[string]Queue{
		"file":   NewFileQueue(filepath.Join(dir, "queue.json"), zap.NewNop()),
		"badger": bq,
		"memory": NewMemoryQueue(),
	}
}

func TestQueue_FIFOAndRemove(t *testing.T) {
	for name, q := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"d1", "d2", "d3"} {
				if err := q.Enqueue(ctx, entry(id)); err != nil {
					t.Fatal(err)
				}
			}
			got, err := q.Drain(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 3 || got[0].DocID != "d1" || got[1].DocID != "d2" || got[2].DocID != "d3" {
				t.Fatalf("unexpected order: %+v", got)
			}
			if got[0].FileName != "d1.pdf" || got[0].OwnerID != "alice" {
				t.Errorf("fields not preserved: %+v", got[0])
			}

			if err := q.Remove(ctx, "d2"); err != nil {
				t.Fatal(err)
			}
			if err := q.Remove(ctx, "missing"); err != nil {
				t.Fatal(err)
			}
			n, err := q.Len(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != 2 {
				t.Errorf("Len = %d, want 2", n)
			}
			got, _ = q.Drain(ctx)
			if got[0].DocID != "d1" || got[1].DocID != "d3" {
				t.Errorf("after remove: %+v", got)
			}
		})
	}
}

func TestQueue_RemoveDuplicates(t *testing.T) {
	for name, q := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = q.Enqueue(ctx, entry("d1"))
			_ = q.Enqueue(ctx, entry("d2"))
			_ = q.Enqueue(ctx, entry("d1"))
			if err := q.Remove(ctx, "d1"); err != nil {
				t.Fatal(err)
			}
			got, _ := q.Drain(ctx)
			if len(got) != 1 || got[0].DocID != "d2" {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestQueue_AckKeepsLaterEntries(t *testing.T) {
	for name, q := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := entry("d1")
			requeued := entry("d1")
			requeued.Timestamp = first.Timestamp.Add(time.Second)
			_ = q.Enqueue(ctx, first)
			_ = q.Enqueue(ctx, entry("d2"))
			_ = q.Enqueue(ctx, requeued)

			if err := q.MarkProcessing(ctx, first); err != nil {
				t.Fatal(err)
			}
			got, _ := q.Drain(ctx)
			if got[0].Status != models.StatusProcessing || got[2].Status != models.StatusPending {
				t.Errorf("MarkProcessing touched the wrong entries: %+v", got)
			}

			claimed := got[0]
			if err := q.Ack(ctx, claimed); err != nil {
				t.Fatal(err)
			}
			if err := q.Ack(ctx, claimed); err != nil {
				t.Fatalf("second Ack: %v", err)
			}
			got, _ = q.Drain(ctx)
			if len(got) != 2 || got[0].DocID != "d2" || got[1].DocID != "d1" {
				t.Fatalf("after Ack: %+v", got)
			}
			if !got[1].Timestamp.Equal(requeued.Timestamp) {
				t.Errorf("the later entry for d1 was removed instead: %+v", got[1])
			}
		})
	}
}

func TestFileQueue_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "queue.json")
	ctx := context.Background()
	q := NewFileQueue(path, zap.NewNop())
	if err := q.Enqueue(ctx, entry("d1")); err != nil {
		t.Fatal(err)
	}

	reopened := NewFileQueue(path, zap.NewNop())
	got, err := reopened.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DocID != "d1" || got[0].Status != models.StatusPending {
		t.Errorf("got %+v", got)
	}
}

func TestFileQueue_CorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	q := NewFileQueue(path, zap.NewNop())

	got, err := q.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty queue, got %+v", got)
	}
	if err := q.Enqueue(ctx, entry("d1")); err != nil {
		t.Fatalf("enqueue after corruption should succeed: %v", err)
	}
	got, _ = q.Drain(ctx)
	if len(got) != 1 {
		t.Errorf("expected 1 entry after self-heal, got %d", len(got))
	}
}

func TestFileQueue_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	q := NewFileQueue(filepath.Join(dir, "queue.json"), zap.NewNop())
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_ = q.Enqueue(ctx, entry(id))
	}
	_ = q.Remove(ctx, "b")
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name() != "queue.json" {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name())
		}
		t.Errorf("unexpected files: %v", names)
	}
}

func TestBadgerQueue_SurvivesRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "queue")
	ctx := context.Background()
	q, err := NewBadgerQueue(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	_ = q.Enqueue(ctx, entry("d1"))
	_ = q.Enqueue(ctx, entry("d2"))
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}

	q, err = NewBadgerQueue(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()
	_ = q.Enqueue(ctx, entry("d3"))
	got, err := q.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].DocID != "d1" || got[2].DocID != "d3" {
		t.Errorf("got %+v", got)
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"file", false},
		{"", false},
		{"memory", false},
		{"badger", false},
		{"redis", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			q, err := New(&config.QueueConfig{Backend: tt.backend, Path: filepath.Join(dir, "q-"+tt.backend)}, zap.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			_ = q.Close()
		})
	}
}
