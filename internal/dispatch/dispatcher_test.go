package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/auctions-etl/internal/batch"
	"github.com/joseph-ayodele/auctions-etl/internal/segment"
)

func makeBatch(docID string, i int) batch.Batch {
	return batch.Batch{
		ID:       docID + "#B" + string(rune('0'+i)),
		DocID:    docID,
		Index:    i - 1,
		Listings: []segment.ListingText{{DocID: docID, Index: i, Text: "Case No: T123/2024"}},
	}
}

func TestDispatcherRunsAllSubmitted(t *testing.T) {
	var ran int64
	runner := RunnerFunc(func(ctx context.Context, b batch.Batch) batch.Result {
		atomic.AddInt64(&ran, 1)
		return batch.Result{Status: batch.StatusSucceeded, Uploaded: len(b.Listings)}
	})
	store := NewStatusStore()
	d := New(runner, store, Options{MaxConcurrent: 2, QueueDepth: 8, BatchTimeout: time.Second}, nil)

	for i := 1; i <= 4; i++ {
		if err := d.Submit(makeBatch("doc.pdf", i)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.WaitSettled(ctx, "doc.pdf", 10*time.Millisecond); err != nil {
		t.Fatalf("wait: %v", err)
	}
	d.Shutdown()

	if got := atomic.LoadInt64(&ran); got != 4 {
		t.Fatalf("ran %d batches, want 4", got)
	}
	for _, o := range store.ForDoc("doc.pdf") {
		if o.Status != batch.StatusSucceeded {
			t.Fatalf("batch %s status = %s, want succeeded", o.BatchID, o.Status)
		}
	}
}

func TestDispatcherConcurrencyCeiling(t *testing.T) {
	const ceiling = 2
	var cur, peak int64
	var mu sync.Mutex
	runner := RunnerFunc(func(ctx context.Context, b batch.Batch) batch.Result {
		n := atomic.AddInt64(&cur, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt64(&cur, -1)
		return batch.Result{Status: batch.StatusSucceeded}
	})
	store := NewStatusStore()
	d := New(runner, store, Options{MaxConcurrent: ceiling, QueueDepth: 16, BatchTimeout: time.Second}, nil)

	for i := 1; i <= 6; i++ {
		if err := d.Submit(makeBatch("doc.pdf", i)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.WaitSettled(ctx, "doc.pdf", 10*time.Millisecond); err != nil {
		t.Fatalf("wait: %v", err)
	}
	d.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if peak > ceiling {
		t.Fatalf("peak concurrency %d exceeded ceiling %d", peak, ceiling)
	}
}

func TestDispatcherSubmitDoesNotBlockWhenFull(t *testing.T) {
	block := make(chan struct{})
	runner := RunnerFunc(func(ctx context.Context, b batch.Batch) batch.Result {
		<-block
		return batch.Result{Status: batch.StatusSucceeded}
	})
	store := NewStatusStore()
	d := New(runner, store, Options{MaxConcurrent: 1, QueueDepth: 1, BatchTimeout: time.Minute}, nil)

	// First batch occupies the single worker, second fills the queue.
	if err := d.Submit(makeBatch("doc.pdf", 1)); err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := d.Submit(makeBatch("doc.pdf", 2)); err != nil {
		t.Fatalf("submit 2: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Submit(makeBatch("doc.pdf", 3)) }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("submit into a full queue must be refused")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	o, ok := store.Get("doc.pdf#B3")
	if !ok || o.Status != batch.StatusFailed {
		t.Fatalf("refused batch must be recorded failed, got %+v ok=%v", o, ok)
	}

	close(block)
	d.Shutdown()
}

func TestDispatcherTimesOutStuckBatch(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, b batch.Batch) batch.Result {
		<-ctx.Done()
		return batch.Result{Status: batch.StatusFailed, Reason: "batch timed out"}
	})
	store := NewStatusStore()
	d := New(runner, store, Options{MaxConcurrent: 1, QueueDepth: 2, BatchTimeout: 30 * time.Millisecond}, nil)

	if err := d.Submit(makeBatch("doc.pdf", 1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.WaitSettled(ctx, "doc.pdf", 10*time.Millisecond); err != nil {
		t.Fatalf("wait: %v", err)
	}
	d.Shutdown()

	o, _ := store.Get("doc.pdf#B1")
	if o.Status != batch.StatusFailed {
		t.Fatalf("stuck batch status = %s, want failed", o.Status)
	}
}

func TestStatusStorePurgeDoc(t *testing.T) {
	store := NewStatusStore()
	store.Set(batch.Outcome{BatchID: "a.pdf#B1", DocID: "a.pdf", Status: batch.StatusSucceeded})
	store.Set(batch.Outcome{BatchID: "a.pdf#B2", DocID: "a.pdf", Status: batch.StatusFailed})
	store.Set(batch.Outcome{BatchID: "b.pdf#B1", DocID: "b.pdf", Status: batch.StatusSucceeded})

	store.PurgeDoc("a.pdf")

	if got := store.ForDoc("a.pdf"); len(got) != 0 {
		t.Fatalf("purged doc still has %d outcomes", len(got))
	}
	if got := store.ForDoc("b.pdf"); len(got) != 1 {
		t.Fatalf("purge must not touch other docs, got %d outcomes", len(got))
	}
}

func TestDispatcherRefusesAfterShutdown(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, b batch.Batch) batch.Result {
		return batch.Result{Status: batch.StatusSucceeded}
	})
	d := New(runner, NewStatusStore(), Options{MaxConcurrent: 1, BatchTimeout: time.Second}, nil)
	d.Shutdown()
	if err := d.Submit(makeBatch("doc.pdf", 1)); err == nil {
		t.Fatal("submit after shutdown must fail")
	}
}
