package batch

import (
	"fmt"

	"github.com/joseph-ayodele/auctions-etl/internal/segment"
)

// Status is the lifecycle state of a batch.
type Status string

const (
	StatusPending         Status = "pending"
	StatusRunning         Status = "running"
	StatusSucceeded       Status = "succeeded"
	StatusPartiallyFailed Status = "partially-failed"
	StatusFailed          Status = "failed"
)

// Per-listing outcomes and failure reasons reported in batch results.
const (
	OutcomeUploaded  = "uploaded"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "skipped-invalid"
	OutcomeFailed    = "failed"

	ReasonValidation     = "validation"
	ReasonBudgetExceeded = "budget-exceeded"
	ReasonDisabled       = "skipped-disabled"
)

// Batch is a bounded group of listings processed by one worker invocation.
type Batch struct {
	ID       string
	DocID    string
	Index    int
	Listings []segment.ListingText
	// Start and End are 1-based listing positions within the novel
	// sequence, kept for log parity with the upstream notices.
	Start int
	End   int
}

// ListingOutcome records the fate of one listing. Every listing in a batch
// gets exactly one outcome, in original positional order.
type ListingOutcome struct {
	Index   int    `json:"index"`
	Key     string `json:"key,omitempty"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

// Result is a completed batch's aggregate.
type Result struct {
	Status     Status           `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Uploaded   int              `json:"uploaded"`
	Duplicates int              `json:"duplicates"`
	Invalid    int              `json:"invalid"`
	Failed     int              `json:"failed"`
	Outcomes   []ListingOutcome `json:"outcomes"`
}

// Outcome pairs a batch's identity with its current status, as tracked by the
// dispatcher's status store.
type Outcome struct {
	BatchID string `json:"batch_id"`
	DocID   string `json:"doc_id"`
	Status  Status `json:"status"`
	Result  Result `json:"result"`
}

// Settled reports whether the batch has reached a terminal status.
func (o Outcome) Settled() bool {
	switch o.Status {
	case StatusSucceeded, StatusPartiallyFailed, StatusFailed:
		return true
	}
	return false
}

// Plan partitions novel listings into batches of at most size listings.
// Identifiers are deterministic in (docID, batch index). Zero listings yield
// zero batches; concatenating all batches' listings in order reproduces the
// input exactly.
func Plan(docID string, listings []segment.ListingText, size int) []Batch {
	if len(listings) == 0 || size <= 0 {
		return nil
	}
	n := (len(listings) + size - 1) / size
	batches := make([]Batch, 0, n)
	for i := 0; i < n; i++ {
		lo := i * size
		hi := lo + size
		if hi > len(listings) {
			hi = len(listings)
		}
		batches = append(batches, Batch{
			ID:       fmt.Sprintf("%s#B%d", docID, i+1),
			DocID:    docID,
			Index:    i,
			Listings: listings[lo:hi],
			Start:    lo + 1,
			End:      hi,
		})
	}
	return batches
}
