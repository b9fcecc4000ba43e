package dispatch

import (
	"sync"

	"github.com/joseph-ayodele/auctions-etl/internal/batch"
)

// StatusStore tracks every submitted batch from acceptance to settlement.
// Keys are batch identifiers, which are deterministic per document, so a
// re-dispatched batch overwrites its own earlier entry rather than
// accumulating.
type StatusStore struct {
	mu       sync.RWMutex
	outcomes map[string]batch.Outcome
}

func NewStatusStore() *StatusStore {
	return &StatusStore{outcomes: make(map[string]batch.Outcome)}
}

func (s *StatusStore) Set(o batch.Outcome) {
	s.mu.Lock()
	s.outcomes[o.BatchID] = o
	s.mu.Unlock()
}

func (s *StatusStore) Get(batchID string) (batch.Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[batchID]
	return o, ok
}

// PurgeDoc drops every outcome belonging to one document. Batch IDs are
// deterministic in (doc, index), so a re-run that plans fewer batches would
// otherwise aggregate the prior run's higher-index entries.
func (s *StatusStore) PurgeDoc(docID string) {
	s.mu.Lock()
	for id, o := range s.outcomes {
		if o.DocID == docID {
			delete(s.outcomes, id)
		}
	}
	s.mu.Unlock()
}

// ForDoc returns the outcomes of every batch belonging to one document.
func (s *StatusStore) ForDoc(docID string) []batch.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []batch.Outcome
	for _, o := range s.outcomes {
		if o.DocID == docID {
			out = append(out, o)
		}
	}
	return out
}

// Snapshot returns all tracked outcomes.
func (s *StatusStore) Snapshot() []batch.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]batch.Outcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		out = append(out, o)
	}
	return out
}

// AllSettled reports whether every batch of a document has reached a
// terminal status. A document with no tracked batches is trivially settled.
func (s *StatusStore) AllSettled(docID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.outcomes {
		if o.DocID == docID && !o.Settled() {
			return false
		}
	}
	return true
}
