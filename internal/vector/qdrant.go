package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// Payload keys written with every point.
const (
	payloadOwnerID  = "ownerId"
	payloadDocID    = "docId"
	payloadFileName = "fileName"
	payloadFilePath = "filePath"
	payloadText     = "pageContent"
	payloadMetadata = "metadata"
)

const upsertBatchSize = 256

// QdrantStore is a Store backed by a Qdrant collection over gRPC.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimensions int
	timeout    time.Duration
	logger     *zap.Logger
}

// NewQdrantStore connects to Qdrant. The collection is not touched until EnsureCollection.
func NewQdrantStore(cfg *config.VectorConfig, dimensions int, logger *zap.Logger) (*QdrantStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimensions: dimensions,
		timeout:    cfg.Timeout,
		logger:     logger,
	}, nil
}

func (s *QdrantStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureCollection creates the cosine collection and keyword indexes on ownerId and docId.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
		}
		s.logger.Info("Created vector collection", zap.String("collection", s.collection), zap.Int("dimensions", s.dimensions))
	}
	for _, field := range []string{payloadOwnerID, payloadDocID} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			s.logger.Warn("Failed to create payload index", zap.String("field", field), zap.Error(err))
		}
	}
	return nil
}

// Upsert writes points in batches and waits for each batch to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, points []models.ChunkRecord) error {
	if err := validatePoints(points, s.dimensions); err != nil {
		return err
	}
	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		batch := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range points[start:end] {
			payload, err := qdrant.TryValueMap(toPayload(p))
			if err != nil {
				return fmt.Errorf("failed to encode payload for %s: %w", p.ID, err)
			}
			batch = append(batch, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(p.ID),
				Vectors: qdrant.NewVectors(p.Vector...),
				Payload: payload,
			})
		}
		if err := s.upsertBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *QdrantStore) upsertBatch(ctx context.Context, batch []*qdrant.PointStruct) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         batch,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// Search queries the collection with a server-side ownerId filter.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int, ownerID string) ([]Match, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if len(vector) != s.dimensions {
		return nil, &DimensionError{Got: len(vector), Want: s.dimensions}
	}
	if limit <= 0 {
		return []Match{}, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         ownerFilter(ownerID),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}
	matches := make([]Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, fromScoredPoint(p))
	}
	return matches, nil
}

// DeleteByOwner removes every point whose ownerId matches.
func (s *QdrantStore) DeleteByOwner(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	return s.deleteFilter(ctx, ownerFilter(ownerID))
}

// DeleteByDocument removes every point whose docId matches.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, docID string) error {
	return s.deleteFilter(ctx, &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocID, docID)}})
}

// DeleteByIDs removes the given points.
func (s *QdrantStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}
	return s.delete(ctx, qdrant.NewPointsSelector(pointIDs...))
}

func (s *QdrantStore) deleteFilter(ctx context.Context, filter *qdrant.Filter) error {
	return s.delete(ctx, qdrant.NewPointsSelectorFilter(filter))
}

func (s *QdrantStore) delete(ctx context.Context, selector *qdrant.PointsSelector) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         selector,
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

// Count returns the exact number of points for ownerID, or all points when ownerID is empty.
func (s *QdrantStore) Count(ctx context.Context, ownerID string) (uint64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	req := &qdrant.CountPoints{CollectionName: s.collection, Exact: qdrant.PtrOf(true)}
	if ownerID != "" {
		req.Filter = ownerFilter(ownerID)
	}
	n, err := s.client.Count(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return n, nil
}

// Ping runs a health check against the server.
func (s *QdrantStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.client.HealthCheck(ctx)
	return err
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func ownerFilter(ownerID string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(payloadOwnerID, ownerID)}}
}

func toPayload(p models.ChunkRecord) map[string]any {
	return map[string]any{
		payloadOwnerID:  p.OwnerID,
		payloadDocID:    p.DocID,
		payloadFileName: p.FileName,
		payloadFilePath: p.FilePath,
		payloadText:     p.Text,
		payloadMetadata: map[string]any{
			"pageNo":     p.PageNumber,
			"totalPages": p.TotalPages,
			"lines": map[string]any{
				"from": p.Lines.From,
				"to":   p.Lines.To,
			},
		},
	}
}

func fromScoredPoint(p *qdrant.ScoredPoint) Match {
	payload := p.GetPayload()
	m := Match{
		ID:    p.GetId().GetUuid(),
		Score: float64(p.GetScore()),
		Chunk: models.ChunkRecord{
			ID:       p.GetId().GetUuid(),
			OwnerID:  payload[payloadOwnerID].GetStringValue(),
			DocID:    payload[payloadDocID].GetStringValue(),
			FileName: payload[payloadFileName].GetStringValue(),
			FilePath: payload[payloadFilePath].GetStringValue(),
			Text:     payload[payloadText].GetStringValue(),
		},
	}
	meta := payload[payloadMetadata].GetStructValue().GetFields()
	m.Chunk.PageNumber = int(meta["pageNo"].GetIntegerValue())
	m.Chunk.TotalPages = int(meta["totalPages"].GetIntegerValue())
	lines := meta["lines"].GetStructValue().GetFields()
	m.Chunk.Lines = models.LineRange{
		From: int(lines["from"].GetIntegerValue()),
		To:   int(lines["to"].GetIntegerValue()),
	}

	for k, v := range payload {
		switch k {
		case payloadOwnerID, payloadDocID, payloadFileName, payloadFilePath, payloadText, payloadMetadata:
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = valueToAny(v)
	}
	return m
}

func valueToAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for key, val := range k.StructValue.GetFields() {
			out[key] = valueToAny(val)
		}
		return out
	case *qdrant.Value_ListValue:
		vals := k.ListValue.GetValues()
		out := make([]any, len(vals))
		for i, val := range vals {
			out[i] = valueToAny(val)
		}
		return out
	default:
		return nil
	}
}
