package dedupe

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/auctions-etl/internal/common"
	"github.com/joseph-ayodele/auctions-etl/internal/segment"
)

// Store is the lookup capability the filter needs from the persistent store.
type Store interface {
	// ExistsAny returns the subset of keys already present.
	ExistsAny(ctx context.Context, keys []string) (map[string]struct{}, error)
}

// Filter drops listings whose natural key is already persisted, preserving
// input order. Listings with an unparseable key are always forwarded. The
// lookup is a single batched round trip; if it fails the filter fails closed
// with ErrDependency so the caller aborts the document instead of risking
// duplicate writes.
func Filter(ctx context.Context, store Store, listings []segment.ListingText, logger *slog.Logger) ([]segment.ListingText, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(listings) == 0 {
		return nil, 0, nil
	}

	keys := make([]string, 0, len(listings))
	seen := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		k := segment.ParseNaturalKey(l.Text)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	var existing map[string]struct{}
	if len(keys) > 0 {
		var err error
		existing, err = store.ExistsAny(ctx, keys)
		if err != nil {
			logger.Error("dedupe.lookup_failed", "keys", len(keys), "error", err)
			return nil, 0, common.NewAppError("DEDUPE_LOOKUP", "existence check failed", common.ErrDependency)
		}
	}

	novel := make([]segment.ListingText, 0, len(listings))
	skipped := 0
	for _, l := range listings {
		k := segment.ParseNaturalKey(l.Text)
		if k != "" {
			if _, dup := existing[k]; dup {
				skipped++
				continue
			}
		}
		novel = append(novel, l)
	}

	logger.Info("dedupe.filtered",
		"listings", len(listings),
		"keys", len(keys),
		"duplicates_skipped", skipped,
		"novel", len(novel),
	)
	return novel, skipped, nil
}
