package batch

import (
	"fmt"
	"testing"

	"github.com/joseph-ayodele/auctions-etl/internal/segment"
)

func mkListings(n int) []segment.ListingText {
	out := make([]segment.ListingText, n)
	for i := range out {
		out[i] = segment.ListingText{DocID: "doc.pdf", Index: i, Text: fmt.Sprintf("Case No: %d/2024 body", i+1)}
	}
	return out
}

func TestPlanSizes(t *testing.T) {
	cases := []struct {
		n, size     int
		wantBatches int
		wantLast    int
	}{
		{60, 50, 2, 10},
		{100, 50, 2, 50},
		{1, 50, 1, 1},
		{49, 25, 2, 24},
		{50, 25, 2, 25},
	}
	for _, tc := range cases {
		batches := Plan("doc.pdf", mkListings(tc.n), tc.size)
		if len(batches) != tc.wantBatches {
			t.Errorf("Plan(n=%d, size=%d) = %d batches, want %d", tc.n, tc.size, len(batches), tc.wantBatches)
			continue
		}
		last := batches[len(batches)-1]
		if len(last.Listings) != tc.wantLast {
			t.Errorf("Plan(n=%d, size=%d) last batch has %d listings, want %d", tc.n, tc.size, len(last.Listings), tc.wantLast)
		}
		for i, b := range batches[:len(batches)-1] {
			if len(b.Listings) != tc.size {
				t.Errorf("batch %d has %d listings, want full %d", i, len(b.Listings), tc.size)
			}
		}
	}
}

func TestPlanReassembly(t *testing.T) {
	in := mkListings(123)
	batches := Plan("doc.pdf", in, 50)

	var reassembled []segment.ListingText
	for _, b := range batches {
		reassembled = append(reassembled, b.Listings...)
	}
	if len(reassembled) != len(in) {
		t.Fatalf("reassembled %d listings, want %d", len(reassembled), len(in))
	}
	for i := range in {
		if reassembled[i] != in[i] {
			t.Fatalf("listing %d differs after reassembly", i)
		}
	}
}

func TestPlanDeterministicIDs(t *testing.T) {
	a := Plan("gazette-52270.pdf", mkListings(75), 50)
	b := Plan("gazette-52270.pdf", mkListings(75), 50)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("batch %d id not deterministic: %q vs %q", i, a[i].ID, b[i].ID)
		}
	}
	if a[0].ID != "gazette-52270.pdf#B1" || a[1].ID != "gazette-52270.pdf#B2" {
		t.Errorf("unexpected id shape: %q, %q", a[0].ID, a[1].ID)
	}
}

func TestPlanEmptyInput(t *testing.T) {
	if got := Plan("doc.pdf", nil, 50); got != nil {
		t.Fatalf("zero novel listings must produce zero batches, got %d", len(got))
	}
}

func TestPlanPositionalMetadata(t *testing.T) {
	batches := Plan("doc.pdf", mkListings(60), 50)
	if batches[0].Start != 1 || batches[0].End != 50 {
		t.Errorf("batch 1 range = %d-%d, want 1-50", batches[0].Start, batches[0].End)
	}
	if batches[1].Start != 51 || batches[1].End != 60 {
		t.Errorf("batch 2 range = %d-%d, want 51-60", batches[1].Start, batches[1].End)
	}
}
