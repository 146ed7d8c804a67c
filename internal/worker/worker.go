// Package worker drains the ingestion queue and drives each document through the pipeline.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/internal/queue"
	"github.com/hyperjump/scout/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultJobTimeout   = 10 * time.Minute
)

// ErrBusy is returned by ProcessQueue when another drain is already running.
var ErrBusy = errors.New("worker: queue drain already in progress")

// Processor ingests one document and returns the metadata to record on success.
type Processor interface {
	Index(ctx context.Context, doc *models.Document) (*models.DocumentMetadata, error)
}

// Purger removes everything indexed for a document. A Processor that also
// implements Purger gets called when a document is deleted mid-job.
type Purger interface {
	Purge(ctx context.Context, docID string) error
}

// Summary counts what one drain did.
type Summary struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Orphaned  int `json:"orphaned"`
	Stale     int `json:"stale"`
	// Superseded counts jobs whose document was reset or deleted while they ran.
	Superseded int `json:"superseded"`
}

// Worker processes queue entries one at a time in FIFO order. It polls on an
// interval and drains immediately when notified.
type Worker struct {
	storage      storage.Storage
	queue        queue.Queue
	processor    Processor
	purger       Purger
	pollInterval time.Duration
	jobTimeout   time.Duration
	onDone       func(doc *models.Document)
	logger       *zap.Logger

	running atomic.Bool
	notify  chan struct{}

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(l *zap.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

// WithOnDone registers a callback invoked after a document reaches a terminal status.
func WithOnDone(fn func(doc *models.Document)) WorkerOption {
	return func(w *Worker) { w.onDone = fn }
}

// New creates a worker. Zero durations in cfg use the defaults.
func New(store storage.Storage, q queue.Queue, p Processor, cfg *config.WorkerConfig, opts ...WorkerOption) *Worker {
	w := &Worker{
		storage:      store,
		queue:        q,
		processor:    p,
		pollInterval: cfg.PollInterval,
		jobTimeout:   cfg.JobTimeout,
		logger:       zap.NewNop(),
		notify:       make(chan struct{}, 1),
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = defaultJobTimeout
	}
	if pg, ok := p.(Purger); ok {
		w.purger = pg
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the poll loop until ctx is cancelled or Stop is called. The queue
// is drained once right away so entries left by a previous run are picked up.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true
	w.logger.Info("Ingestion worker started", zap.Duration("poll_interval", w.pollInterval))
	go w.run(ctx, w.done)
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-w.notify:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	summary, err := w.ProcessQueue(ctx)
	if errors.Is(err, ErrBusy) {
		return
	}
	if err != nil {
		w.logger.Error("Queue drain failed", zap.Error(err))
		return
	}
	if summary.Processed > 0 || summary.Orphaned > 0 || summary.Stale > 0 {
		w.logger.Info("Queue drained",
			zap.Int("processed", summary.Processed),
			zap.Int("completed", summary.Completed),
			zap.Int("failed", summary.Failed),
			zap.Int("orphaned", summary.Orphaned),
			zap.Int("stale", summary.Stale),
			zap.Int("superseded", summary.Superseded))
	}
}

// Notify asks the loop to drain the queue without waiting for the next poll.
// It never blocks; notifications sent while one is pending are merged.
func (w *Worker) Notify() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Stop ends the loop and waits for it to exit. A job already running is
// allowed to finish; remaining entries stay queued for the next start.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.started = false
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("Ingestion worker stopped")
}

// ProcessQueue takes one snapshot of the queue and processes its entries in
// order. It returns ErrBusy if a drain is already in progress. Cancelling ctx
// stops the drain between entries, never during one.
func (w *Worker) ProcessQueue(ctx context.Context) (Summary, error) {
	var summary Summary
	if !w.running.CompareAndSwap(false, true) {
		return summary, ErrBusy
	}
	defer w.running.Store(false)

	entries, err := w.queue.Drain(ctx)
	if err != nil {
		return summary, err
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		w.processEntry(ctx, entry, &summary)
	}
	return summary, nil
}

func (w *Worker) processEntry(ctx context.Context, entry models.QueueEntry, summary *Summary) {
	log := w.logger.With(zap.String("doc_id", entry.DocID), zap.String("owner_id", entry.OwnerID))

	doc, err := w.storage.Get(ctx, entry.DocID)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("Dropping queue entry for missing document")
		w.ack(ctx, entry, log)
		summary.Orphaned++
		return
	}
	if err != nil {
		log.Error("Failed to load document, leaving entry queued", zap.Error(err))
		return
	}
	if doc.Status.Terminal() {
		log.Debug("Dropping stale queue entry", zap.String("status", string(doc.Status)))
		w.ack(ctx, entry, log)
		summary.Stale++
		return
	}

	if doc.Status == models.StatusProcessing {
		log.Info("Resuming interrupted document")
	} else {
		if err := w.storage.UpdateStatus(ctx, doc.ID, models.StatusProcessing, "", nil); err != nil {
			log.Error("Failed to mark document processing", zap.Error(err))
			return
		}
		doc.Status = models.StatusProcessing
	}
	if err := w.queue.MarkProcessing(ctx, entry); err != nil {
		log.Warn("Failed to mark queue entry processing", zap.Error(err))
	}

	// The job runs to completion or timeout even if the worker is stopped.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()
	start := time.Now()
	meta, jobErr := w.processor.Index(jobCtx, doc)
	summary.Processed++

	statusCtx := context.WithoutCancel(ctx)
	status, errMsg := models.StatusCompleted, ""
	if jobErr != nil {
		status, errMsg, meta = models.StatusFailed, jobErr.Error(), nil
	}
	if err := w.storage.FinishProcessing(statusCtx, doc.ID, status, errMsg, meta); err != nil {
		w.superseded(statusCtx, entry, err, summary, log)
		return
	}
	doc.Status, doc.Error, doc.Metadata = status, errMsg, meta
	if jobErr != nil {
		log.Warn("Document ingestion failed", zap.String("file", doc.FileName), zap.Error(jobErr))
		summary.Failed++
	} else {
		summary.Completed++
		log.Info("Document ingested",
			zap.String("file", doc.FileName),
			zap.Int("pages", meta.TotalPages),
			zap.Int("chunks", meta.TotalChunks),
			zap.Duration("took", time.Since(start)))
	}
	w.ack(statusCtx, entry, log)
	if w.onDone != nil {
		w.onDone(doc)
	}
}

// superseded handles a terminal write that was refused. A document deleted
// mid-job has its freshly written points purged. A document reset by a rebuild
// is left to the entry the rebuild queued.
func (w *Worker) superseded(ctx context.Context, entry models.QueueEntry, err error, summary *Summary, log *zap.Logger) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Info("Document deleted during ingestion, discarding result")
		if w.purger != nil {
			if perr := w.purger.Purge(ctx, entry.DocID); perr != nil {
				log.Error("Failed to purge vectors of deleted document", zap.Error(perr))
			}
		}
	case errors.Is(err, models.ErrStatusChanged):
		log.Info("Document reset during ingestion, discarding result", zap.Error(err))
	default:
		// Left queued; the next drain resumes the document.
		log.Error("Failed to record ingestion result", zap.Error(err))
		return
	}
	w.ack(ctx, entry, log)
	summary.Superseded++
}

func (w *Worker) ack(ctx context.Context, entry models.QueueEntry, log *zap.Logger) {
	if err := w.queue.Ack(ctx, entry); err != nil {
		log.Error("Failed to remove queue entry", zap.Error(err))
	}
}
