package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/auctions-etl/internal/batch"
	"github.com/joseph-ayodele/auctions-etl/internal/common"
)

// Runner executes one batch end to end and returns its aggregate result.
// Implementations must honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, b batch.Batch) batch.Result
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, b batch.Batch) batch.Result

func (f RunnerFunc) Run(ctx context.Context, b batch.Batch) batch.Result {
	return f(ctx, b)
}

// Options configures the dispatcher.
type Options struct {
	// MaxConcurrent is the hard ceiling on batches executing at once.
	MaxConcurrent int
	// QueueDepth bounds how many accepted batches may wait for a worker.
	QueueDepth int
	// BatchTimeout caps one batch's execution window. A batch that has not
	// reported by then is recorded failed and its worker freed.
	BatchTimeout time.Duration
}

// Dispatcher runs batches on a fixed pool of workers. Submit never blocks
// the caller: a batch is either accepted into the queue or refused
// immediately. Each accepted batch ends in exactly one terminal status in
// the store.
type Dispatcher struct {
	runner Runner
	store  *StatusStore
	opts   Options
	queue  chan batch.Batch
	wg     sync.WaitGroup
	stop   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func New(runner Runner, store *StatusStore, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = opts.MaxConcurrent * 4
	}
	d := &Dispatcher{
		runner: runner,
		store:  store,
		opts:   opts,
		queue:  make(chan batch.Batch, opts.QueueDepth),
		stop:   make(chan struct{}),
		logger: logger,
	}
	for i := 0; i < opts.MaxConcurrent; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// Submit enqueues a batch without blocking. On acceptance the batch is
// recorded pending; a full queue or a stopped dispatcher refuses it.
func (d *Dispatcher) Submit(b batch.Batch) error {
	select {
	case <-d.stop:
		return common.NewAppError("DISPATCH_STOPPED", "dispatcher is shut down", common.ErrDependency)
	default:
	}
	d.store.Set(batch.Outcome{BatchID: b.ID, DocID: b.DocID, Status: batch.StatusPending})
	select {
	case d.queue <- b:
		d.logger.Info("dispatch.accepted", "batch_id", b.ID, "listings", len(b.Listings))
		return nil
	default:
		d.store.Set(batch.Outcome{
			BatchID: b.ID,
			DocID:   b.DocID,
			Status:  batch.StatusFailed,
			Result:  batch.Result{Status: batch.StatusFailed, Reason: "queue full"},
		})
		d.logger.Warn("dispatch.refused", "batch_id", b.ID)
		return common.NewAppError("DISPATCH_FULL", "dispatch queue is full", common.ErrDependency)
	}
}

// Store exposes the status store for read-side callers.
func (d *Dispatcher) Store() *StatusStore { return d.store }

// WaitSettled polls until every batch of docID is terminal or ctx expires.
func (d *Dispatcher) WaitSettled(ctx context.Context, docID string, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if d.store.AllSettled(docID) {
			return nil
		}
		select {
		case <-ctx.Done():
			return common.NewAppError("DISPATCH_WAIT", "timed out waiting for batches", common.ErrTimeout)
		case <-ticker.C:
		}
	}
}

// Shutdown stops accepting work and waits for in-flight batches to drain.
func (d *Dispatcher) Shutdown() {
	d.once.Do(func() {
		close(d.stop)
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for b := range d.queue {
		d.execute(id, b)
	}
}

// execute runs one batch inside its timeout window. The runner goroutine is
// given a cancelable context; if it outlives the window the batch is
// recorded failed and the worker moves on.
func (d *Dispatcher) execute(workerID int, b batch.Batch) {
	d.store.Set(batch.Outcome{BatchID: b.ID, DocID: b.DocID, Status: batch.StatusRunning})
	d.logger.Info("dispatch.batch_start", "worker", workerID, "batch_id", b.ID)

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.BatchTimeout)
	defer cancel()

	done := make(chan batch.Result, 1)
	go func() {
		done <- d.runner.Run(ctx, b)
	}()

	var res batch.Result
	select {
	case res = <-done:
	case <-ctx.Done():
		// The runner's context is canceled at this point; an abandoned
		// runner fails its remaining listings on the next ctx check, so at
		// most the in-flight listing can still insert a record.
		// Give it a moment to observe cancellation and report.
		select {
		case res = <-done:
		case <-time.After(5 * time.Second):
			res = batch.Result{Status: batch.StatusFailed, Reason: "batch timed out"}
		}
	}
	if res.Status == "" {
		res.Status = batch.StatusFailed
	}

	d.store.Set(batch.Outcome{BatchID: b.ID, DocID: b.DocID, Status: res.Status, Result: res})
	d.logger.Info("dispatch.batch_done",
		"worker", workerID,
		"batch_id", b.ID,
		"status", res.Status,
		"uploaded", res.Uploaded,
		"duplicates", res.Duplicates,
		"failed", res.Failed)
}
