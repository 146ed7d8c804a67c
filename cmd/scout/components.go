package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/scout/internal/answer"
	"github.com/hyperjump/scout/internal/blob"
	"github.com/hyperjump/scout/internal/cache"
	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/documents"
	"github.com/hyperjump/scout/internal/embedding"
	"github.com/hyperjump/scout/internal/extract"
	"github.com/hyperjump/scout/internal/indexer"
	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/internal/queue"
	"github.com/hyperjump/scout/internal/search"
	"github.com/hyperjump/scout/internal/storage"
	"github.com/hyperjump/scout/internal/vector"
	"github.com/hyperjump/scout/internal/watcher"
	"github.com/hyperjump/scout/internal/worker"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Records   storage.Storage
	Blobs     blob.Store
	Queue     queue.Queue
	Embedder  embedding.Embedder
	Vectors   vector.Store
	Cache     *cache.Cache
	Indexer   *indexer.Indexer
	Engine    *search.Engine
	Worker    *worker.Worker
	Documents *documents.Service
}

func (c *Components) Close() {
	if c.Worker != nil {
		c.Worker.Stop()
	}
	if c.Indexer != nil {
		c.Indexer.Close()
	}
	if c.Queue != nil {
		_ = c.Queue.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Records != nil {
		_ = c.Records.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if c.Records, err = storage.New(&cfg.Storage, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize record store: %w", err)
	}
	if c.Blobs, err = blob.New(ctx, &cfg.Storage, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}
	if c.Queue, err = queue.New(&cfg.Queue, logger); err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	if c.Embedder, err = embedding.New(&cfg.Embedding); err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if c.Vectors, err = vector.New(&cfg.Vector, c.Embedder.Dimensions(), logger); err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	if err = c.Vectors.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare vector collection: %w", err)
	}
	logger.Info("Vector store ready",
		zap.String("backend", cfg.Vector.Backend),
		zap.String("collection", cfg.Vector.Collection),
		zap.Int("dimensions", c.Embedder.Dimensions()))

	synth, err := answer.New(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize answer model: %w", err)
	}
	if c.Indexer, err = indexer.NewIndexer(c.Blobs, extract.NewLoader(), c.Embedder, c.Vectors, &cfg.Ingest,
		indexer.WithLogger(logger)); err != nil {
		return nil, fmt.Errorf("failed to initialize indexer: %w", err)
	}

	c.Cache = cache.New(cfg.Search.CacheTTL, cfg.Search.CacheSweepThreshold)
	c.Engine = search.NewEngine(c.Embedder, c.Vectors, synth, c.Cache, &cfg.Search, search.WithLogger(logger))

	responses := c.Cache
	c.Worker = worker.New(c.Records, c.Queue, c.Indexer, &cfg.Worker,
		worker.WithLogger(logger),
		worker.WithOnDone(func(doc *models.Document) {
			// New or removed evidence changes what the owner's questions return.
			responses.Invalidate(doc.OwnerID)
		}))
	c.Documents = documents.NewService(c.Records, c.Blobs, c.Vectors, c.Queue, c.Cache,
		documents.WithLogger(logger), documents.WithNotifier(c.Worker))
	return c, nil
}

// startQueueWatcher wakes the worker when another process writes the queue file.
// Only the file backend can be shared between processes.
func startQueueWatcher(ctx context.Context, cfg *config.Config, w *worker.Worker, logger *zap.Logger) (*watcher.Watcher, error) {
	if cfg.Queue.Backend != "file" || !cfg.Worker.WatchQueueOrDefault() {
		return nil, nil
	}
	qw := watcher.NewWatcher([]string{cfg.Queue.Path}, func(string) { w.Notify() }, watcher.WithLogger(logger))
	if err := qw.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to watch queue file: %w", err)
	}
	return qw, nil
}
