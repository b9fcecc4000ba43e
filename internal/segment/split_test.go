package segment

import (
	"strings"
	"testing"
)

func TestSplitListingsRoundTrip(t *testing.T) {
	text := "Case No: 101/2024 first notice body " +
		"Case No: D202/2024 second notice body " +
		"Case No: 303/2025 third notice runs to the end"

	listings := SplitListings("doc.pdf", text)
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}
	for i, l := range listings {
		if l.Index != i {
			t.Errorf("listing %d has index %d", i, l.Index)
		}
		if l.DocID != "doc.pdf" {
			t.Errorf("listing %d has doc id %q", i, l.DocID)
		}
	}

	var sb strings.Builder
	for _, l := range listings {
		sb.WriteString(l.Text)
	}
	if sb.String() != text {
		t.Fatalf("concatenated listings do not reproduce the scanned span:\n got %q\nwant %q", sb.String(), text)
	}
}

func TestSplitListingsDiscardsHeaderNoise(t *testing.T) {
	text := "gazette preamble and index noise Case No: 55/2024 the only notice"
	listings := SplitListings("doc.pdf", text)
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	if !strings.HasPrefix(listings[0].Text, "Case No: 55/2024") {
		t.Errorf("listing should start at the delimiter, got %q", listings[0].Text)
	}
}

func TestSplitListingsNoMatches(t *testing.T) {
	listings := SplitListings("doc.pdf", "nothing resembling a delimiter here")
	if len(listings) != 0 {
		t.Fatalf("expected no listings, got %d", len(listings))
	}
}

func TestSplitListingsAdjacentDelimiters(t *testing.T) {
	// A delimiter immediately followed by another yields a header-only
	// listing; downstream validation rejects it, segmentation must not.
	text := "Case No: 1/2024 Case No: 2/2024 real body"
	listings := SplitListings("doc.pdf", text)
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if got := strings.TrimSpace(listings[0].Text); got != "Case No: 1/2024" {
		t.Errorf("first listing should be header-only, got %q", got)
	}
}

func TestCleanTextStripsBoilerplate(t *testing.T) {
	raw := "STAATSKOERANT, 14 Februarie 2025\nGOVERNMENT GAZETTE, 14 February 2025\n" +
		"This gazette is also available free online at www.gpwonline.co.za\n" +
		"Case No: 12/2024   body é text"
	got := CleanText(raw)
	if strings.Contains(got, "STAATSKOERANT") || strings.Contains(got, "GAZETTE") {
		t.Errorf("boilerplate survived cleaning: %q", got)
	}
	if strings.Contains(got, "é") {
		t.Errorf("non-ascii survived cleaning: %q", got)
	}
	if strings.Contains(got, "  ") {
		t.Errorf("whitespace not collapsed: %q", got)
	}
	if !strings.Contains(got, "Case No: 12/2024") {
		t.Errorf("delimiter lost during cleaning: %q", got)
	}
}

func TestParseNaturalKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Case No: 123/2024 some body", "123/2024"},
		{"case no: d99/2023 lower case header", "D99/2023"},
		{"no key in this text", ""},
	}
	for _, tc := range cases {
		if got := ParseNaturalKey(tc.in); got != tc.want {
			t.Errorf("ParseNaturalKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
