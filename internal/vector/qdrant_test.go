package vector

import (
	"testing"

	"github.com/hyperjump/scout/internal/models"
	"github.com/qdrant/go-client/qdrant"
)

func TestPayloadRoundTrip(t *testing.T) {
	rec := models.ChunkRecord{
		ID:         "7f1b2c3d-0000-5000-8000-000000000001",
		OwnerID:    "alice",
		DocID:      "doc-1",
		FileName:   "report.pdf",
		FilePath:   "/uploads/alice/1_report.pdf",
		Text:       "Revenue grew 12%",
		PageNumber: 2,
		TotalPages: 3,
		Lines:      models.LineRange{From: 5, To: 11},
	}
	payload, err := qdrant.TryValueMap(toPayload(rec))
	if err != nil {
		t.Fatal(err)
	}
	payload["source"] = qdrant.NewValueString("upload")

	m := fromScoredPoint(&qdrant.ScoredPoint{
		Id:      qdrant.NewIDUUID(rec.ID),
		Payload: payload,
		Score:   0.75,
	})
	if m.ID != rec.ID || m.Chunk.ID != rec.ID {
		t.Errorf("id = %q", m.ID)
	}
	if m.Score != 0.75 {
		t.Errorf("score = %f", m.Score)
	}
	got := m.Chunk
	if got.OwnerID != "alice" || got.DocID != "doc-1" || got.FileName != "report.pdf" || got.FilePath != rec.FilePath {
		t.Errorf("identity fields: %+v", got)
	}
	if got.Text != rec.Text || got.PageNumber != 2 || got.TotalPages != 3 || got.Lines != rec.Lines {
		t.Errorf("content fields: %+v", got)
	}
	if m.Extra["source"] != "upload" {
		t.Errorf("extra = %v", m.Extra)
	}
}

func TestFromScoredPoint_MissingMetadata(t *testing.T) {
	m := fromScoredPoint(&qdrant.ScoredPoint{
		Id:      qdrant.NewIDUUID("7f1b2c3d-0000-5000-8000-000000000002"),
		Payload: qdrant.NewValueMap(map[string]any{"ownerId": "bob", "pageContent": "x"}),
	})
	if m.Chunk.OwnerID != "bob" || m.Chunk.PageNumber != 0 || m.Chunk.Lines.From != 0 {
		t.Errorf("got %+v", m.Chunk)
	}
	if m.Extra != nil {
		t.Errorf("expected no extra fields, got %v", m.Extra)
	}
}
