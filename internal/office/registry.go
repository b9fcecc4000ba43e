package office

import (
	"context"
	"log/slog"
	"strings"
)

// Entry maps one office's canonical free-text name to its stable identifier.
type Entry struct {
	Name string
	ID   string
}

// Source loads the reference table, typically from the offices table.
type Source interface {
	LoadOffices(ctx context.Context) ([]Entry, error)
}

// Registry resolves free-text office names to stable identifiers via
// token-overlap scoring. Lookups that score at or below the threshold fall
// back to the default identifier with the association flagged as failed.
type Registry struct {
	entries   []Entry // names stored lower-cased
	defaultID string
	threshold int
	logger    *slog.Logger
}

func NewRegistry(entries []Entry, defaultID string, threshold int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	lowered := make([]Entry, len(entries))
	for i, e := range entries {
		lowered[i] = Entry{Name: strings.ToLower(strings.TrimSpace(e.Name)), ID: e.ID}
	}
	return &Registry{entries: lowered, defaultID: defaultID, threshold: threshold, logger: logger}
}

// Load builds a registry from a source table.
func Load(ctx context.Context, src Source, defaultID string, threshold int, logger *slog.Logger) (*Registry, error) {
	entries, err := src.LoadOffices(ctx)
	if err != nil {
		return nil, err
	}
	return NewRegistry(entries, defaultID, threshold, logger), nil
}

// DefaultID returns the fallback identifier used when no match clears the
// threshold.
func (r *Registry) DefaultID() string { return r.defaultID }

// Lookup resolves a free-text office name. associated is false when the
// lookup fell back to the default identifier.
func (r *Registry) Lookup(freeText string) (id string, associated bool) {
	name := strings.ToLower(strings.TrimSpace(freeText))
	if name == "" || len(r.entries) == 0 {
		return r.defaultID, false
	}

	// Exact match first.
	for _, e := range r.entries {
		if e.Name == name {
			return e.ID, true
		}
	}

	bestID := ""
	bestScore := 0
	for _, e := range r.entries {
		score := overlapScore(name, e.Name)
		if score > bestScore {
			bestScore = score
			bestID = e.ID
		}
	}
	if bestID != "" && bestScore > r.threshold {
		r.logger.Debug("office.fuzzy_match", "input", freeText, "score", bestScore)
		return bestID, true
	}
	r.logger.Warn("office.no_match", "input", freeText, "best_score", bestScore)
	return r.defaultID, false
}

// overlapScore measures token overlap between an input name and a candidate.
// Each input word longer than two characters that contains, or is contained
// by, a candidate word scores its own length; candidate words found inside
// the whole input score theirs. Deterministic for fixed inputs.
func overlapScore(input, candidate string) int {
	inputWords := strings.Fields(input)
	candidateWords := strings.Fields(candidate)

	score := 0
	for _, iw := range inputWords {
		if len(iw) <= 2 {
			continue
		}
		for _, cw := range candidateWords {
			if strings.Contains(cw, iw) || strings.Contains(iw, cw) {
				score += len(iw)
			}
		}
	}
	for _, cw := range candidateWords {
		if len(cw) > 2 && strings.Contains(input, cw) {
			score += len(cw)
		}
	}
	return score
}
