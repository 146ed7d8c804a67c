// Package search answers questions from an owner's indexed documents.
package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hyperjump/scout/internal/answer"
	"github.com/hyperjump/scout/internal/cache"
	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/embedding"
	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Engine runs retrieval-augmented answering scoped to one owner per call.
type Engine struct {
	embedder embedding.Embedder
	vectors  vector.Store
	synth    answer.Synthesizer
	cache    *cache.Cache
	config   *config.SearchConfig
	dedupe   bool
	group    singleflight.Group
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine. A nil cache disables response caching.
func NewEngine(
	embedder embedding.Embedder,
	vectors vector.Store,
	synth answer.Synthesizer,
	c *cache.Cache,
	cfg *config.SearchConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		embedder: embedder,
		vectors:  vectors,
		synth:    synth,
		cache:    c,
		config:   cfg,
		dedupe:   cfg.DedupeInflightOrDefault(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer answers query from ownerID's documents using up to k pieces of evidence.
// Identical questions within the cache TTL are served from the cache with Cached set.
func (e *Engine) Answer(ctx context.Context, ownerID, query string, k int) (*models.Answer, error) {
	query, k, err := ProcessQuery(ownerID, query, k, e.config)
	if err != nil {
		return nil, err
	}
	key := cache.NewKey(ownerID, query, k)
	if e.cache != nil {
		if hit, ok := e.cache.Get(key); ok {
			e.logger.Debug("Answer served from cache", zap.String("owner_id", ownerID), zap.Int("k", k))
			return hit, nil
		}
	}
	var gen uint64
	if e.cache != nil {
		gen = e.cache.Generation(ownerID)
	}
	if !e.dedupe {
		return e.compute(ctx, ownerID, query, k, key, gen)
	}

	// The shared computation must not die with whichever caller started it.
	// Callers arriving after an invalidation start a new one.
	flight := key.String() + "#" + strconv.FormatUint(gen, 10)
	ch := e.group.DoChan(flight, func() (any, error) {
		return e.compute(context.WithoutCancel(ctx), ownerID, query, k, key, gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Answer).Clone(), nil
	}
}

func (e *Engine) compute(ctx context.Context, ownerID, query string, k int, key cache.Key, gen uint64) (*models.Answer, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	matches, err := e.vectors.Search(ctx, vec, k, ownerID)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	evidence := make([]models.Evidence, 0, len(matches))
	for _, m := range matches {
		if m.Chunk.OwnerID != ownerID {
			e.logger.Error("Dropping match owned by another tenant",
				zap.String("owner_id", ownerID),
				zap.String("match_owner_id", m.Chunk.OwnerID),
				zap.String("point_id", m.ID))
			continue
		}
		evidence = append(evidence, m.Evidence())
	}

	result := &models.Answer{Sources: make([]models.Source, 0, len(evidence))}
	if len(evidence) == 0 {
		result.Answer = models.NoResultsAnswer
	} else {
		text, err := e.synth.Answer(ctx, query, evidence)
		if err != nil {
			return nil, fmt.Errorf("answer synthesis failed: %w", err)
		}
		result.Answer = text
		for _, ev := range evidence {
			result.Sources = append(result.Sources, ev.Source())
		}
	}
	if e.cache != nil && !e.cache.SetIfCurrent(key, result, gen) {
		e.logger.Debug("Owner documents changed during the query, answer not cached", zap.String("owner_id", ownerID))
	}
	e.logger.Debug("Answer computed",
		zap.String("owner_id", ownerID),
		zap.Int("k", k),
		zap.Int("sources", len(result.Sources)))
	return result, nil
}
