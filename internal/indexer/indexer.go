package indexer

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/scout/internal/blob"
	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/embedding"
	"github.com/hyperjump/scout/internal/extract"
	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/internal/pointid"
	"github.com/hyperjump/scout/internal/vector"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

const embedBatchSize = 32

// Indexer runs the ingestion pipeline for one document at a time:
// read the raw file, load pages, chunk, embed, and upsert into the vector store.
type Indexer struct {
	blobs    blob.Store
	loader   *extract.Loader
	chunker  *Chunker
	embedder embedding.Embedder
	vectors  vector.Store
	pool     *ants.Pool
	logger   *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for pipeline progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. Embedding batches of a document run on a pool
// of cfg.EmbedConcurrency goroutines.
func NewIndexer(
	blobs blob.Store,
	loader *extract.Loader,
	embedder embedding.Embedder,
	vectors vector.Store,
	cfg *config.IngestConfig,
	opts ...IndexerOption,
) (*Indexer, error) {
	size := cfg.EmbedConcurrency
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	idx := &Indexer{
		blobs:    blobs,
		loader:   loader,
		chunker:  NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder: embedder,
		vectors:  vectors,
		pool:     pool,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Close releases the embedding pool.
func (idx *Indexer) Close() {
	idx.pool.Release()
}

// Index ingests doc and returns the metadata to record on completion. The
// document's previous points are deleted before the new ones are written, so a
// re-ingested document that shrank leaves nothing stale behind.
func (idx *Indexer) Index(ctx context.Context, doc *models.Document) (*models.DocumentMetadata, error) {
	if doc.OwnerID == "" {
		return nil, models.ErrOwnerRequired
	}
	content, err := idx.blobs.Read(ctx, doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	pages, err := idx.loader.Load(doc.FileName, content)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	chunks, err := idx.chunker.Chunk(pages)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrNoExtractableText, doc.FileName)
	}
	idx.logger.Debug("Document chunked",
		zap.String("doc_id", doc.ID),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))

	vectors, err := idx.embedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	records := make([]models.ChunkRecord, len(chunks))
	for i, ch := range chunks {
		records[i] = models.ChunkRecord{
			ID:         pointid.ChunkID(doc.ID, ch.Index),
			DocID:      doc.ID,
			OwnerID:    doc.OwnerID,
			FileName:   doc.FileName,
			FilePath:   doc.FilePath,
			Text:       ch.Text,
			PageNumber: ch.PageNumber,
			TotalPages: ch.TotalPages,
			Lines:      ch.Lines,
			Vector:     vectors[i],
		}
	}
	if err := idx.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("failed to clear previous vectors: %w", err)
	}
	if err := idx.vectors.Upsert(ctx, records); err != nil {
		// A failed batch may have landed partially.
		if delErr := idx.vectors.DeleteByIDs(context.WithoutCancel(ctx), pointid.ChunkIDs(doc.ID, len(records))); delErr != nil {
			idx.logger.Warn("Failed to remove partially written vectors",
				zap.String("doc_id", doc.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}

	return &models.DocumentMetadata{
		TotalPages:  totalPages(pages),
		TotalChunks: len(chunks),
	}, nil
}

// Purge deletes every point of docID.
func (idx *Indexer) Purge(ctx context.Context, docID string) error {
	if err := idx.vectors.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

// embedChunks embeds chunk texts in batches on the pool, keeping chunk order.
func (idx *Indexer) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	out := make([][]float32, len(chunks))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Text
		}
		wg.Add(1)
		err := idx.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				setErr(ctx.Err())
				return
			}
			vecs, err := idx.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				setErr(err)
				return
			}
			if len(vecs) != len(texts) {
				setErr(fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts)))
				return
			}
			copy(out[start:end], vecs)
		})
		if err != nil {
			wg.Done()
			setErr(err)
			break
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func totalPages(pages []models.Page) int {
	if len(pages) == 0 {
		return 0
	}
	return pages[0].TotalPages
}
