package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joseph-ayodele/auctions-etl/internal/batch"
	"github.com/joseph-ayodele/auctions-etl/internal/common"
	"github.com/joseph-ayodele/auctions-etl/internal/extract"
	"github.com/joseph-ayodele/auctions-etl/internal/normalize"
	"github.com/joseph-ayodele/auctions-etl/internal/office"
	"github.com/joseph-ayodele/auctions-etl/internal/repository"
	"github.com/joseph-ayodele/auctions-etl/internal/segment"
)

// Budget is a run-wide token allowance shared by all workers. Reservations
// are estimates made before each model call; once the allowance is spent,
// every later reservation is refused.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget creates a budget. A non-positive limit means unlimited.
func NewBudget(limit int64) *Budget {
	return &Budget{limit: limit}
}

// Reserve charges an estimated token cost against the budget. It reports
// false when the charge would push usage past the limit; the charge is
// rolled back so a smaller later reservation can still fit.
func (b *Budget) Reserve(tokens int64) bool {
	if b.limit <= 0 {
		return true
	}
	if b.used.Add(tokens) > b.limit {
		b.used.Add(-tokens)
		return false
	}
	return true
}

func (b *Budget) Used() int64 { return b.used.Load() }

// Reset clears accumulated usage. The ceiling is per run, so the coordinator
// resets the budget at the start of every authorized run.
func (b *Budget) Reset() { b.used.Store(0) }

// estimateTokens approximates the model cost of a prompt from its byte
// length. Four bytes per token is the usual rough figure for English text.
func estimateTokens(text string) int64 {
	n := int64(len(text)) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Worker turns one batch of listing texts into persisted auction records.
// Each listing independently passes through extraction, validation,
// normalization, office resolution, and insert; one listing's failure never
// aborts its siblings.
type Worker struct {
	extractor  extract.FieldExtractor
	repo       repository.AuctionsRepository
	offices    *office.Registry
	budget     *Budget
	maxRetries int
	enabled    bool
	logger     *slog.Logger
}

func New(
	extractor extract.FieldExtractor,
	repo repository.AuctionsRepository,
	offices *office.Registry,
	budget *Budget,
	maxRetries int,
	enabled bool,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if budget == nil {
		budget = NewBudget(0)
	}
	return &Worker{
		extractor:  extractor,
		repo:       repo,
		offices:    offices,
		budget:     budget,
		maxRetries: maxRetries,
		enabled:    enabled,
		logger:     logger,
	}
}

// Run processes every listing in the batch and derives the batch status
// from the per-listing outcomes.
func (w *Worker) Run(ctx context.Context, b batch.Batch) batch.Result {
	res := batch.Result{Outcomes: make([]batch.ListingOutcome, 0, len(b.Listings))}

	if !w.enabled {
		w.logger.Info("worker.batch_skipped_disabled", "batch_id", b.ID)
		for _, l := range b.Listings {
			res.Outcomes = append(res.Outcomes, batch.ListingOutcome{
				Index:   l.Index,
				Key:     segment.ParseNaturalKey(l.Text),
				Outcome: batch.ReasonDisabled,
			})
		}
		res.Status = batch.StatusSucceeded
		res.Reason = batch.ReasonDisabled
		return res
	}

	for _, l := range b.Listings {
		if err := ctx.Err(); err != nil {
			res.Failed++
			res.Outcomes = append(res.Outcomes, batch.ListingOutcome{
				Index:   l.Index,
				Key:     segment.ParseNaturalKey(l.Text),
				Outcome: batch.OutcomeFailed,
				Reason:  "canceled",
			})
			continue
		}
		res.Outcomes = append(res.Outcomes, w.processListing(ctx, b, l, &res))
	}

	switch {
	case res.Uploaded > 0 && res.Failed > 0:
		res.Status = batch.StatusPartiallyFailed
	case res.Failed > 0:
		res.Status = batch.StatusFailed
	default:
		res.Status = batch.StatusSucceeded
	}
	return res
}

func (w *Worker) processListing(ctx context.Context, b batch.Batch, l segment.ListingText, res *batch.Result) batch.ListingOutcome {
	out := batch.ListingOutcome{Index: l.Index, Key: segment.ParseNaturalKey(l.Text)}

	cost := estimateTokens(l.Text)
	if !w.budget.Reserve(cost) {
		w.logger.Warn("worker.budget_exceeded",
			"batch_id", b.ID, "listing", l.Index, "used", w.budget.Used())
		res.Failed++
		out.Outcome = batch.OutcomeFailed
		out.Reason = batch.ReasonBudgetExceeded
		return out
	}

	fields, err := w.extractWithRetry(ctx, l)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			w.logger.Warn("worker.listing_invalid", "batch_id", b.ID, "listing", l.Index, "error", err)
			res.Invalid++
			out.Outcome = batch.OutcomeInvalid
			out.Reason = batch.ReasonValidation
			return out
		}
		w.logger.Error("worker.extract_failed", "batch_id", b.ID, "listing", l.Index, "error", err)
		res.Failed++
		out.Outcome = batch.OutcomeFailed
		out.Reason = "extraction"
		return out
	}

	normalize.Fields(&fields)
	if out.Key == "" {
		out.Key = fields.CaseNumber
	}

	officeID, associated := w.offices.Lookup(normalize.OfficeName(fields.SheriffOffice))
	rec := &repository.AuctionRecord{
		Fields:           fields,
		OfficeID:         officeID,
		OfficeAssociated: associated,
		DocID:            l.DocID,
		RawText:          l.Text,
		ExtractedAt:      time.Now().UTC(),
	}
	if err := w.repo.Insert(ctx, rec); err != nil {
		if errors.Is(err, common.ErrDuplicateKey) {
			res.Duplicates++
			out.Outcome = batch.OutcomeDuplicate
			return out
		}
		w.logger.Error("worker.insert_failed",
			"batch_id", b.ID, "listing", l.Index, "case_number", fields.CaseNumber, "error", err)
		res.Failed++
		out.Outcome = batch.OutcomeFailed
		out.Reason = "persistence"
		return out
	}

	res.Uploaded++
	out.Outcome = batch.OutcomeUploaded
	return out
}

// extractWithRetry calls the model, retrying transient failures with
// exponential backoff. Validation and other permanent errors surface on the
// first attempt.
func (w *Worker) extractWithRetry(ctx context.Context, l segment.ListingText) (extract.AuctionFields, error) {
	var fields extract.AuctionFields
	op := func() error {
		f, _, err := w.extractor.ExtractFields(ctx, extract.ExtractRequest{
			ListingText:  l.Text,
			DocID:        l.DocID,
			ListingIndex: l.Index,
		})
		if err != nil {
			if common.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		fields = f
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(w.maxRetries)), ctx))
	return fields, err
}
