package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/auctions-etl/internal/batch"
	"github.com/joseph-ayodele/auctions-etl/internal/common"
	"github.com/joseph-ayodele/auctions-etl/internal/dispatch"
	"github.com/joseph-ayodele/auctions-etl/internal/segment"
	"github.com/joseph-ayodele/auctions-etl/internal/storage"
)

const testSecret = "hook-secret"

type fakeObjects struct {
	mu      sync.Mutex
	data    map[string][]byte
	fetches int
	moves   map[string]string // key -> dest prefix
}

func newFakeObjects(keys ...string) *fakeObjects {
	data := make(map[string][]byte)
	for _, k := range keys {
		data[k] = []byte("%PDF-1.4 stub")
	}
	return &fakeObjects{data: data, moves: make(map[string]string)}
}

func (f *fakeObjects) Fetch(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	raw, ok := f.data[key]
	if !ok {
		return nil, common.NewAppError("STORAGE_NOT_FOUND", key, common.ErrNotFound)
	}
	return raw, nil
}

func (f *fakeObjects) Move(ctx context.Context, key, destPrefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves[key] = destPrefix
	return nil
}

func (f *fakeObjects) movedTo(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.moves[key]
}

func (f *fakeObjects) moveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.moves)
}

func (f *fakeObjects) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeSegmenter struct {
	listings int
	calls    int
	err      error
}

func (f *fakeSegmenter) Segment(docID string, raw []byte) ([]segment.ListingText, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]segment.ListingText, f.listings)
	for i := range out {
		out[i] = segment.ListingText{
			DocID: docID,
			Index: i + 1,
			Text:  fmt.Sprintf("Case No: T%d/2024 sale in execution", i+1),
		}
	}
	return out, nil
}

type fakeDedupStore struct {
	known map[string]struct{}
	calls int
	err   error
}

func (f *fakeDedupStore) ExistsAny(ctx context.Context, keys []string) (map[string]struct{}, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]struct{})
	for _, k := range keys {
		if _, ok := f.known[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

type fakeBudget struct {
	resets int
}

func (f *fakeBudget) Reset() { f.resets++ }

// fakeDispatcher settles every submitted batch immediately.
type fakeDispatcher struct {
	store       *dispatch.StatusStore
	submitted   []batch.Batch
	failBatches map[string]bool
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{store: dispatch.NewStatusStore(), failBatches: make(map[string]bool)}
}

func (d *fakeDispatcher) Submit(b batch.Batch) error {
	d.submitted = append(d.submitted, b)
	if d.failBatches[b.ID] {
		d.store.Set(batch.Outcome{
			BatchID: b.ID, DocID: b.DocID, Status: batch.StatusFailed,
			Result: batch.Result{Status: batch.StatusFailed, Reason: "batch timed out"},
		})
		return nil
	}
	d.store.Set(batch.Outcome{
		BatchID: b.ID, DocID: b.DocID, Status: batch.StatusSucceeded,
		Result: batch.Result{Status: batch.StatusSucceeded, Uploaded: len(b.Listings)},
	})
	return nil
}

func (d *fakeDispatcher) WaitSettled(ctx context.Context, docID string, interval time.Duration) error {
	return nil
}

func (d *fakeDispatcher) Store() *dispatch.StatusStore { return d.store }

func testConfig() common.PipelineConfig {
	return common.PipelineConfig{
		BatchSize:         50,
		WaitForCompletion: true,
		RunDeadline:       time.Minute,
		PollInterval:      time.Millisecond,
	}
}

func TestRunDeduplicatesAndBatches(t *testing.T) {
	// 158 listings, 98 already persisted: 60 novel -> 2 batches of 50 and 10.
	seg := &fakeSegmenter{listings: 158}
	known := make(map[string]struct{})
	for i := 1; i <= 98; i++ {
		known[fmt.Sprintf("T%d/2024", i)] = struct{}{}
	}
	objects := newFakeObjects("unprocessed/gazette.pdf")
	disp := newFakeDispatcher()
	c := New(objects, seg, &fakeDedupStore{known: known}, disp, nil, testConfig(), testSecret, nil)

	summary, err := c.Run(context.Background(), Notification{
		Secret:   testSecret,
		PDFFiles: []string{"unprocessed/gazette.pdf"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.ListingsFound != 158 || summary.DuplicatesSkipped != 98 {
		t.Fatalf("listings=%d duplicates=%d, want 158/98", summary.ListingsFound, summary.DuplicatesSkipped)
	}
	if summary.BatchesDispatched != 2 {
		t.Fatalf("batches dispatched = %d, want 2", summary.BatchesDispatched)
	}
	if got := len(disp.submitted[0].Listings); got != 50 {
		t.Fatalf("first batch size = %d, want 50", got)
	}
	if got := len(disp.submitted[1].Listings); got != 10 {
		t.Fatalf("second batch size = %d, want 10", got)
	}
	if summary.RecordsUploaded != 60 {
		t.Fatalf("uploaded = %d, want 60", summary.RecordsUploaded)
	}
	if dest := objects.movedTo("unprocessed/gazette.pdf"); dest != storage.PrefixProcessed {
		t.Fatalf("file settled under %q, want processed/", dest)
	}
	if summary.State != StateDone {
		t.Fatalf("run state = %s, want done", summary.State)
	}
}

func TestRunRejectsBadSecretWithoutSideEffects(t *testing.T) {
	seg := &fakeSegmenter{listings: 5}
	objects := newFakeObjects("unprocessed/gazette.pdf")
	store := &fakeDedupStore{}
	disp := newFakeDispatcher()
	budget := &fakeBudget{}
	c := New(objects, seg, store, disp, budget, testConfig(), testSecret, nil)

	summary, err := c.Run(context.Background(), Notification{
		Secret:   "wrong",
		PDFFiles: []string{"unprocessed/gazette.pdf"},
	})
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if summary.State != StateRejected {
		t.Fatalf("state = %s, want rejected", summary.State)
	}
	if objects.fetchCount() != 0 || seg.calls != 0 || store.calls != 0 || len(disp.submitted) != 0 {
		t.Fatal("rejected run must touch nothing")
	}
	if objects.moveCount() != 0 {
		t.Fatal("rejected run must not move files")
	}
	if budget.resets != 0 {
		t.Fatal("rejected run must not touch the budget")
	}
}

func TestRunResetsBudgetPerRun(t *testing.T) {
	seg := &fakeSegmenter{listings: 2}
	objects := newFakeObjects("unprocessed/a.pdf", "unprocessed/b.pdf")
	budget := &fakeBudget{}
	c := New(objects, seg, &fakeDedupStore{}, newFakeDispatcher(), budget, testConfig(), testSecret, nil)

	for _, key := range []string{"unprocessed/a.pdf", "unprocessed/b.pdf"} {
		if _, err := c.Run(context.Background(), Notification{
			Secret:   testSecret,
			PDFFiles: []string{key},
		}); err != nil {
			t.Fatalf("run %s: %v", key, err)
		}
	}
	if budget.resets != 2 {
		t.Fatalf("budget reset %d times, want once per run", budget.resets)
	}
}

func TestRunPurgesStaleOutcomesOnRerun(t *testing.T) {
	// A prior run left a failed second batch behind. Today's re-run finds
	// more duplicates, plans a single batch, and must not inherit it.
	seg := &fakeSegmenter{listings: 10}
	objects := newFakeObjects("unprocessed/gazette.pdf")
	disp := newFakeDispatcher()
	disp.store.Set(batch.Outcome{
		BatchID: "gazette.pdf#B2", DocID: "gazette.pdf", Status: batch.StatusFailed,
		Result: batch.Result{Status: batch.StatusFailed, Reason: "batch timed out"},
	})
	c := New(objects, seg, &fakeDedupStore{}, disp, nil, testConfig(), testSecret, nil)

	summary, err := c.Run(context.Background(), Notification{
		Secret:   testSecret,
		PDFFiles: []string{"unprocessed/gazette.pdf"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.BatchesDispatched != 1 {
		t.Fatalf("batches dispatched = %d, want 1", summary.BatchesDispatched)
	}
	if summary.BatchesFailed != 0 {
		t.Fatalf("stale outcome leaked into the re-run: failed=%d", summary.BatchesFailed)
	}
	if dest := objects.movedTo("unprocessed/gazette.pdf"); dest != storage.PrefixProcessed {
		t.Fatalf("file settled under %q, want processed/", dest)
	}
}

func TestRunAsyncSettlesFileAfterBatches(t *testing.T) {
	seg := &fakeSegmenter{listings: 5}
	objects := newFakeObjects("unprocessed/gazette.pdf")
	disp := newFakeDispatcher()
	cfg := testConfig()
	cfg.WaitForCompletion = false
	c := New(objects, seg, &fakeDedupStore{}, disp, nil, cfg, testSecret, nil)

	summary, err := c.Run(context.Background(), Notification{
		Secret:   testSecret,
		PDFFiles: []string{"unprocessed/gazette.pdf"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Documents[0].State != StateDispatching {
		t.Fatalf("async doc state = %s, want dispatching", summary.Documents[0].State)
	}

	deadline := time.Now().Add(2 * time.Second)
	for objects.movedTo("unprocessed/gazette.pdf") == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if dest := objects.movedTo("unprocessed/gazette.pdf"); dest != storage.PrefixProcessed {
		t.Fatalf("async run settled file under %q, want processed/", dest)
	}
}

func TestRunAsyncFailedBatchGoesToErrored(t *testing.T) {
	seg := &fakeSegmenter{listings: 5}
	objects := newFakeObjects("unprocessed/gazette.pdf")
	disp := newFakeDispatcher()
	disp.failBatches["gazette.pdf#B1"] = true
	cfg := testConfig()
	cfg.WaitForCompletion = false
	c := New(objects, seg, &fakeDedupStore{}, disp, nil, cfg, testSecret, nil)

	if _, err := c.Run(context.Background(), Notification{
		Secret:   testSecret,
		PDFFiles: []string{"unprocessed/gazette.pdf"},
	}); err != nil {
		t.Fatalf("run: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for objects.movedTo("unprocessed/gazette.pdf") == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if dest := objects.movedTo("unprocessed/gazette.pdf"); dest != storage.PrefixErrored {
		t.Fatalf("async failed run settled file under %q, want errored/", dest)
	}
}

func TestRunUnreadableDocumentGoesToErrored(t *testing.T) {
	seg := &fakeSegmenter{err: common.NewAppError("PDF_UNREADABLE", "bad pdf", common.ErrExtraction)}
	objects := newFakeObjects("unprocessed/broken.pdf")
	disp := newFakeDispatcher()
	c := New(objects, seg, &fakeDedupStore{}, disp, nil, testConfig(), testSecret, nil)

	summary, err := c.Run(context.Background(), Notification{
		Secret:   testSecret,
		PDFFiles: []string{"unprocessed/broken.pdf"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Documents[0].State != StateAborted {
		t.Fatalf("doc state = %s, want aborted", summary.Documents[0].State)
	}
	if dest := objects.movedTo("unprocessed/broken.pdf"); dest != storage.PrefixErrored {
		t.Fatalf("file settled under %q, want errored/", dest)
	}
	if len(disp.submitted) != 0 {
		t.Fatal("aborted document must not dispatch batches")
	}
}

func TestRunDedupeOutageAbortsBeforeDispatch(t *testing.T) {
	seg := &fakeSegmenter{listings: 10}
	objects := newFakeObjects("unprocessed/gazette.pdf")
	store := &fakeDedupStore{err: common.NewAppError("DB_QUERY", "down", common.ErrDependency)}
	disp := newFakeDispatcher()
	c := New(objects, seg, store, disp, nil, testConfig(), testSecret, nil)

	summary, _ := c.Run(context.Background(), Notification{
		Secret:   testSecret,
		PDFFiles: []string{"unprocessed/gazette.pdf"},
	})
	if summary.Documents[0].State != StateAborted {
		t.Fatalf("doc state = %s, want aborted", summary.Documents[0].State)
	}
	if len(disp.submitted) != 0 {
		t.Fatal("dedupe outage must abort before any dispatch")
	}
	if dest := objects.movedTo("unprocessed/gazette.pdf"); dest != storage.PrefixErrored {
		t.Fatalf("file settled under %q, want errored/", dest)
	}
}

func TestRunAllDuplicatesIsIdempotent(t *testing.T) {
	seg := &fakeSegmenter{listings: 10}
	known := make(map[string]struct{})
	for i := 1; i <= 10; i++ {
		known[fmt.Sprintf("T%d/2024", i)] = struct{}{}
	}
	objects := newFakeObjects("unprocessed/gazette.pdf")
	disp := newFakeDispatcher()
	c := New(objects, seg, &fakeDedupStore{known: known}, disp, nil, testConfig(), testSecret, nil)

	summary, err := c.Run(context.Background(), Notification{
		Secret:   testSecret,
		PDFFiles: []string{"unprocessed/gazette.pdf"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.BatchesDispatched != 0 || len(disp.submitted) != 0 {
		t.Fatal("a fully-duplicate document must dispatch nothing")
	}
	if summary.DuplicatesSkipped != 10 {
		t.Fatalf("duplicates = %d, want 10", summary.DuplicatesSkipped)
	}
	if dest := objects.movedTo("unprocessed/gazette.pdf"); dest != storage.PrefixProcessed {
		t.Fatalf("file settled under %q, want processed/", dest)
	}
}

func TestRunFailedBatchSendsFileToErrored(t *testing.T) {
	seg := &fakeSegmenter{listings: 60}
	objects := newFakeObjects("unprocessed/gazette.pdf")
	disp := newFakeDispatcher()
	disp.failBatches["gazette.pdf#B2"] = true
	c := New(objects, seg, &fakeDedupStore{}, disp, nil, testConfig(), testSecret, nil)

	summary, err := c.Run(context.Background(), Notification{
		Secret:   testSecret,
		PDFFiles: []string{"unprocessed/gazette.pdf"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.BatchesFailed != 1 || summary.BatchesSucceeded != 1 {
		t.Fatalf("failed=%d succeeded=%d, want 1/1", summary.BatchesFailed, summary.BatchesSucceeded)
	}
	if dest := objects.movedTo("unprocessed/gazette.pdf"); dest != storage.PrefixErrored {
		t.Fatalf("file settled under %q, want errored/", dest)
	}
}

func TestRunMissingObjectReportsError(t *testing.T) {
	seg := &fakeSegmenter{listings: 5}
	objects := newFakeObjects() // bucket empty
	disp := newFakeDispatcher()
	c := New(objects, seg, &fakeDedupStore{}, disp, nil, testConfig(), testSecret, nil)

	summary, err := c.Run(context.Background(), Notification{
		Secret:   testSecret,
		PDFFiles: []string{"unprocessed/gone.pdf"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Documents[0].State != StateAborted || len(summary.Errors) != 1 {
		t.Fatalf("missing object must abort its document: %+v", summary.Documents[0])
	}
	if seg.calls != 0 {
		t.Fatal("missing object must not reach the segmenter")
	}
}
