package normalize

import (
	"testing"

	"github.com/joseph-ayodele/auctions-etl/internal/extract"
)

func TestFieldsDeterministic(t *testing.T) {
	mk := func() extract.AuctionFields {
		return extract.AuctionFields{
			CaseNumber:    " d123/2024 ",
			Plaintiff:     "  Standard Bank  ",
			SheriffOffice: "Johannesberg  North",
			Zoning:        "residential",
			Kitchen:       "YES",
			Currency:      "",
		}
	}
	a, b := mk(), mk()
	Fields(&a)
	Fields(&b)
	if a != b {
		t.Fatal("normalization must be deterministic")
	}
}

func TestFieldsNormalization(t *testing.T) {
	f := extract.AuctionFields{
		CaseNumber:    " d123/2024 ",
		Plaintiff:     "  Standard Bank  ",
		SheriffOffice: "Johannesberg North",
		Zoning:        "residential",
		Kitchen:       "yes",
		Garage:        "DOUBLE",
		Currency:      "zar",
	}
	Fields(&f)

	if f.CaseNumber != "D123/2024" {
		t.Errorf("case number = %q", f.CaseNumber)
	}
	if f.Plaintiff != "Standard Bank" {
		t.Errorf("plaintiff = %q", f.Plaintiff)
	}
	if f.SheriffOffice != "Johannesburg North" {
		t.Errorf("sheriff office = %q", f.SheriffOffice)
	}
	if f.Zoning != "Residential" {
		t.Errorf("zoning = %q", f.Zoning)
	}
	if f.Kitchen != "Yes" {
		t.Errorf("kitchen = %q", f.Kitchen)
	}
	if f.Garage != "Double" {
		t.Errorf("garage = %q", f.Garage)
	}
	if f.Currency != "ZAR" {
		t.Errorf("currency = %q", f.Currency)
	}
}

func TestFieldsDefaultsCurrency(t *testing.T) {
	f := extract.AuctionFields{CaseNumber: "1/2024"}
	Fields(&f)
	if f.Currency != "ZAR" {
		t.Errorf("missing currency should default to ZAR, got %q", f.Currency)
	}
}

func TestOfficeNameCasePreserved(t *testing.T) {
	cases := []struct{ in, want string }{
		{"PRETROIA EAST", "PRETORIA EAST"},
		{"Centurian", "Centurion"},
		{"  Sandton   North ", "Sandton North"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := OfficeName(tc.in); got != tc.want {
			t.Errorf("OfficeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
