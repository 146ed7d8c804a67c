package pointid

import (
	"testing"

	"github.com/google/uuid"
)

func TestChunkID(t *testing.T) {
	a := ChunkID("doc-1", 0)
	if a != ChunkID("doc-1", 0) {
		t.Error("same input should yield same id")
	}
	if a == ChunkID("doc-1", 1) {
		t.Error("different chunk index should yield different id")
	}
	if a == ChunkID("doc-2", 0) {
		t.Error("different document should yield different id")
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("not a UUID: %v", err)
	}
	if parsed.Version() != 5 {
		t.Errorf("expected version 5, got %d", parsed.Version())
	}
}

func TestChunkIDs(t *testing.T) {
	ids := ChunkIDs("doc-1", 3)
	if len(ids) != 3 {
		t.Fatalf("got %d ids", len(ids))
	}
	for i, id := range ids {
		if id != ChunkID("doc-1", i) {
			t.Errorf("ids[%d] mismatch", i)
		}
	}
	if len(ChunkIDs("doc-1", 0)) != 0 {
		t.Error("expected no ids")
	}
}
