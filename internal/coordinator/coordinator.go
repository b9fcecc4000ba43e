package coordinator

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/auctions-etl/internal/batch"
	"github.com/joseph-ayodele/auctions-etl/internal/common"
	"github.com/joseph-ayodele/auctions-etl/internal/dedupe"
	"github.com/joseph-ayodele/auctions-etl/internal/dispatch"
	"github.com/joseph-ayodele/auctions-etl/internal/segment"
	"github.com/joseph-ayodele/auctions-etl/internal/storage"
)

// State is where a document (or the run as a whole) sits in the pipeline.
type State string

const (
	StateReceived      State = "received"
	StateSegmenting    State = "segmenting"
	StateDeduplicating State = "deduplicating"
	StatePlanning      State = "planning"
	StateDispatching   State = "dispatching"
	StateAggregating   State = "aggregating"
	StateDone          State = "done"
	StateRejected      State = "rejected"
	StateAborted       State = "aborted"
)

// Notification is the upstream signal that new gazette PDFs are waiting in
// the bucket.
type Notification struct {
	Secret   string   `json:"secret"`
	PDFFiles []string `json:"pdf_files"`
}

// DocReport is one document's trip through the pipeline.
type DocReport struct {
	DocID             string `json:"doc_id"`
	Key               string `json:"key"`
	State             State  `json:"state"`
	ListingsFound     int    `json:"listings_found"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	Batches           int    `json:"batches"`
	Error             string `json:"error,omitempty"`
}

// RunSummary aggregates one notification's processing.
type RunSummary struct {
	RunID                  string          `json:"run_id"`
	State                  State           `json:"state"`
	StartedAt              time.Time       `json:"started_at"`
	FinishedAt             time.Time       `json:"finished_at"`
	Documents              []DocReport     `json:"documents"`
	ListingsFound          int             `json:"listings_found"`
	DuplicatesSkipped      int             `json:"duplicates_skipped"`
	BatchesDispatched      int             `json:"batches_dispatched"`
	BatchesSucceeded       int             `json:"batches_succeeded"`
	BatchesPartiallyFailed int             `json:"batches_partially_failed"`
	BatchesFailed          int             `json:"batches_failed"`
	RecordsUploaded        int             `json:"records_uploaded"`
	SkippedDisabled        int             `json:"skipped_disabled"`
	Errors                 []string        `json:"errors,omitempty"`
	Outcomes               []batch.Outcome `json:"outcomes,omitempty"`
}

// ObjectStore is the bucket capability the coordinator needs.
type ObjectStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Move(ctx context.Context, key, destPrefix string) error
}

// Segmenter turns one document's raw bytes into ordered listing texts.
type Segmenter interface {
	Segment(docID string, raw []byte) ([]segment.ListingText, error)
}

// Dispatcher is the batch-execution capability the coordinator needs.
type Dispatcher interface {
	Submit(b batch.Batch) error
	WaitSettled(ctx context.Context, docID string, interval time.Duration) error
	Store() *dispatch.StatusStore
}

// TokenBudget is the run-scoped allowance the workers draw from. The
// coordinator resets it when an authorized run starts.
type TokenBudget interface {
	Reset()
}

// Coordinator drives a notification through segmentation, deduplication,
// planning, dispatch, and aggregation, and settles each source file into its
// lifecycle prefix.
type Coordinator struct {
	objects    ObjectStore
	segmenter  Segmenter
	dedupStore dedupe.Store
	dispatcher Dispatcher
	budget     TokenBudget
	cfg        common.PipelineConfig
	secret     string
	logger     *slog.Logger

	mu      sync.RWMutex
	lastRun *RunSummary
}

func New(
	objects ObjectStore,
	segmenter Segmenter,
	dedupStore dedupe.Store,
	dispatcher Dispatcher,
	budget TokenBudget,
	cfg common.PipelineConfig,
	secret string,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		objects:    objects,
		segmenter:  segmenter,
		dedupStore: dedupStore,
		dispatcher: dispatcher,
		budget:     budget,
		cfg:        cfg,
		secret:     secret,
		logger:     logger,
	}
}

// LastRun returns the most recent run summary, or nil before the first run.
func (c *Coordinator) LastRun() *RunSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRun
}

func (c *Coordinator) setLastRun(s *RunSummary) {
	c.mu.Lock()
	c.lastRun = s
	c.mu.Unlock()
}

// newRunID keeps the legacy HHMMSS_<n>PDFs shape with a short random suffix
// so two notifications within the same second stay distinct.
func newRunID(docs int) string {
	return fmt.Sprintf("%s_%dPDFs_%s",
		time.Now().Format("150405"), docs, uuid.NewString()[:8])
}

// Run processes one notification end to end. A secret mismatch rejects the
// run before any bucket or database access.
func (c *Coordinator) Run(ctx context.Context, n Notification) (*RunSummary, error) {
	summary := &RunSummary{StartedAt: time.Now().UTC(), State: StateReceived}

	if subtle.ConstantTimeCompare([]byte(n.Secret), []byte(c.secret)) != 1 {
		summary.State = StateRejected
		summary.FinishedAt = time.Now().UTC()
		c.logger.Warn("coordinator.rejected", "docs", len(n.PDFFiles))
		return summary, common.NewAppError("WEBHOOK_SECRET", "secret mismatch", common.ErrUnauthorized)
	}

	summary.RunID = newRunID(len(n.PDFFiles))
	if c.budget != nil {
		c.budget.Reset()
	}
	c.logger.Info("coordinator.run_start", "run_id", summary.RunID, "docs", len(n.PDFFiles))

	for _, key := range n.PDFFiles {
		rep := c.processDocument(ctx, key, summary)
		summary.Documents = append(summary.Documents, rep)
		if rep.Error != "" {
			summary.Errors = append(summary.Errors, rep.DocID+": "+rep.Error)
		}
	}

	summary.State = StateDone
	summary.FinishedAt = time.Now().UTC()
	c.setLastRun(summary)
	c.logger.Info("coordinator.run_done",
		"run_id", summary.RunID,
		"listings", summary.ListingsFound,
		"duplicates", summary.DuplicatesSkipped,
		"batches", summary.BatchesDispatched,
		"uploaded", summary.RecordsUploaded,
		"errors", len(summary.Errors))
	return summary, nil
}

func (c *Coordinator) processDocument(ctx context.Context, key string, summary *RunSummary) DocReport {
	docID := path.Base(key)
	rep := DocReport{DocID: docID, Key: key, State: StateSegmenting}
	log := c.logger.With("run_id", summary.RunID, "doc_id", docID)

	raw, err := c.objects.Fetch(ctx, key)
	if err != nil {
		log.Error("coordinator.fetch_failed", "error", err)
		rep.State = StateAborted
		rep.Error = "fetch: " + err.Error()
		c.settleFile(ctx, key, storage.PrefixErrored, log)
		return rep
	}

	listings, err := c.segmenter.Segment(docID, raw)
	if err != nil {
		log.Error("coordinator.segment_failed", "error", err)
		rep.State = StateAborted
		rep.Error = "segment: " + err.Error()
		c.settleFile(ctx, key, storage.PrefixErrored, log)
		return rep
	}
	rep.ListingsFound = len(listings)
	summary.ListingsFound += len(listings)
	if len(listings) == 0 {
		log.Info("coordinator.no_listings")
		rep.State = StateDone
		c.settleFile(ctx, key, storage.PrefixProcessed, log)
		return rep
	}

	rep.State = StateDeduplicating
	novel, skipped, err := dedupe.Filter(ctx, c.dedupStore, listings, log)
	if err != nil {
		// No batch has started, so aborting here cannot strand partial
		// writes. The file stays retryable under errored/.
		log.Error("coordinator.dedupe_failed", "error", err)
		rep.State = StateAborted
		rep.Error = "dedupe: " + err.Error()
		c.settleFile(ctx, key, storage.PrefixErrored, log)
		return rep
	}
	rep.DuplicatesSkipped = skipped
	summary.DuplicatesSkipped += skipped
	if len(novel) == 0 {
		log.Info("coordinator.all_duplicates", "skipped", skipped)
		rep.State = StateDone
		c.settleFile(ctx, key, storage.PrefixProcessed, log)
		return rep
	}

	rep.State = StatePlanning
	batches := batch.Plan(docID, novel, c.cfg.BatchSize)
	rep.Batches = len(batches)

	rep.State = StateDispatching
	c.dispatcher.Store().PurgeDoc(docID)
	for _, b := range batches {
		if err := c.dispatcher.Submit(b); err != nil {
			log.Error("coordinator.submit_refused", "batch_id", b.ID, "error", err)
			rep.Error = "submit: " + err.Error()
			continue
		}
		summary.BatchesDispatched++
	}

	if !c.cfg.WaitForCompletion {
		log.Info("coordinator.dispatched_async", "batches", len(batches))
		go c.finalizeAsync(key, docID, log)
		return rep
	}

	rep.State = StateAggregating
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.RunDeadline)
	defer cancel()
	if err := c.dispatcher.WaitSettled(waitCtx, docID, c.cfg.PollInterval); err != nil {
		log.Error("coordinator.aggregation_timeout", "error", err)
		rep.State = StateAborted
		rep.Error = "aggregate: " + err.Error()
		c.settleFile(ctx, key, storage.PrefixErrored, log)
		return rep
	}

	fullyFailed := c.aggregate(docID, summary)
	if fullyFailed > 0 {
		log.Warn("coordinator.doc_failed", "failed_batches", fullyFailed)
		rep.State = StateDone
		rep.Error = fmt.Sprintf("%d batch(es) failed", fullyFailed)
		c.settleFile(ctx, key, storage.PrefixErrored, log)
		return rep
	}

	rep.State = StateDone
	c.settleFile(ctx, key, storage.PrefixProcessed, log)
	return rep
}

// finalizeAsync settles a fire-and-forget document once its batches finish.
// The run summary has already been returned to the caller; final outcomes
// stay queryable through the dispatcher's status store.
func (c *Coordinator) finalizeAsync(key, docID string, log *slog.Logger) {
	waitCtx, cancel := context.WithTimeout(context.Background(), c.cfg.RunDeadline)
	defer cancel()
	if err := c.dispatcher.WaitSettled(waitCtx, docID, c.cfg.PollInterval); err != nil {
		log.Error("coordinator.async_aggregation_timeout", "error", err)
		c.settleFile(context.Background(), key, storage.PrefixErrored, log)
		return
	}

	fullyFailed := 0
	for _, o := range c.dispatcher.Store().ForDoc(docID) {
		if o.Status == batch.StatusFailed {
			fullyFailed++
		}
	}
	if fullyFailed > 0 {
		log.Warn("coordinator.async_doc_failed", "failed_batches", fullyFailed)
		c.settleFile(context.Background(), key, storage.PrefixErrored, log)
		return
	}
	c.settleFile(context.Background(), key, storage.PrefixProcessed, log)
}

// aggregate folds a document's batch outcomes into the run summary and
// returns how many of its batches failed outright.
func (c *Coordinator) aggregate(docID string, summary *RunSummary) int {
	fullyFailed := 0
	for _, o := range c.dispatcher.Store().ForDoc(docID) {
		summary.Outcomes = append(summary.Outcomes, o)
		switch o.Status {
		case batch.StatusSucceeded:
			summary.BatchesSucceeded++
		case batch.StatusPartiallyFailed:
			summary.BatchesPartiallyFailed++
			c.logger.Warn("coordinator.partial_batch",
				"batch_id", o.BatchID, "failed", o.Result.Failed, "uploaded", o.Result.Uploaded)
		case batch.StatusFailed:
			summary.BatchesFailed++
			fullyFailed++
		}
		summary.RecordsUploaded += o.Result.Uploaded
		if o.Result.Reason == batch.ReasonDisabled {
			summary.SkippedDisabled += len(o.Result.Outcomes)
		}
	}
	return fullyFailed
}

// settleFile moves a source document into its lifecycle prefix. A failed
// move only logs; the pipeline result stands either way.
func (c *Coordinator) settleFile(ctx context.Context, key, destPrefix string, log *slog.Logger) {
	if err := c.objects.Move(ctx, key, destPrefix); err != nil {
		log.Error("coordinator.move_failed", "key", key, "dest", destPrefix, "error", err)
	}
}
