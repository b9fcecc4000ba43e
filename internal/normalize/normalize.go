package normalize

import (
	"strings"

	"github.com/joseph-ayodele/auctions-etl/internal/extract"
)

// Canonical zoning labels the dataset uses. Anything else is kept verbatim
// (trimmed) so unusual gazette wording is not destroyed.
var zoningLabels = map[string]string{
	"residential":  "Residential",
	"commercial":   "Commercial",
	"agricultural": "Agricultural",
	"industrial":   "Industrial",
	"mixed use":    "Mixed Use",
	"mixed-use":    "Mixed Use",
	"vacant land":  "Vacant Land",
}

// Common gazette misspellings of office/place names, observed in the source
// notices. Lower-case token -> replacement token.
var officeSpellings = map[string]string{
	"johannesberg": "johannesburg",
	"johannesbrug": "johannesburg",
	"pretroia":     "pretoria",
	"pretoira":     "pretoria",
	"centurian":    "centurion",
	"roodeport":    "roodepoort",
	"germistion":   "germiston",
	"vereenining":  "vereeniging",
}

// Yes/no style amenity fields get a canonical casing.
var yesNoWords = map[string]string{
	"yes": "Yes", "no": "No", "none": "None",
	"single": "Single", "double": "Double",
}

// Fields normalizes free-text fields in place. It is pure: the same input
// always yields the same output, with no clock, locale or environment
// dependence.
func Fields(f *extract.AuctionFields) {
	f.CaseNumber = strings.ToUpper(strings.TrimSpace(f.CaseNumber))
	f.CourtName = strings.TrimSpace(f.CourtName)
	f.Plaintiff = strings.TrimSpace(f.Plaintiff)
	f.Defendant = strings.TrimSpace(f.Defendant)
	f.SheriffOffice = OfficeName(f.SheriffOffice)
	f.SheriffAddress = strings.TrimSpace(f.SheriffAddress)
	f.ErfNumber = strings.TrimSpace(f.ErfNumber)
	f.Township = strings.TrimSpace(f.Township)
	f.Extension = strings.TrimSpace(f.Extension)
	f.RegistrationDivision = strings.ToUpper(strings.TrimSpace(f.RegistrationDivision))
	f.Province = strings.TrimSpace(f.Province)
	f.DeedOfTransferNumber = strings.ToUpper(strings.TrimSpace(f.DeedOfTransferNumber))
	f.StreetAddress = strings.TrimSpace(f.StreetAddress)
	f.Zoning = zoning(f.Zoning)
	f.Kitchen = yesNo(f.Kitchen)
	f.Scullery = yesNo(f.Scullery)
	f.Laundry = yesNo(f.Laundry)
	f.Garage = yesNo(f.Garage)
	f.Carport = yesNo(f.Carport)
	f.OtherStructures = strings.TrimSpace(f.OtherStructures)
	f.RegistrationFee = strings.TrimSpace(f.RegistrationFee)
	f.FicaRequirements = strings.TrimSpace(f.FicaRequirements)
	f.Attorney = strings.TrimSpace(f.Attorney)
	f.AttorneyContact = strings.TrimSpace(f.AttorneyContact)
	f.AttorneyReference = strings.TrimSpace(f.AttorneyReference)
	f.AdditionalFees = strings.TrimSpace(f.AdditionalFees)
	f.ConditionsOfSale = strings.TrimSpace(f.ConditionsOfSale)

	f.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
	if f.Currency == "" {
		f.Currency = "ZAR"
	}
}

// OfficeName trims, collapses whitespace and fixes known misspellings,
// preserving the original word casing where no correction applies.
func OfficeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	words := strings.Split(name, " ")
	for i, w := range words {
		if fix, ok := officeSpellings[strings.ToLower(w)]; ok {
			words[i] = matchCase(w, fix)
		}
	}
	return strings.Join(words, " ")
}

func zoning(s string) string {
	s = strings.TrimSpace(s)
	if canon, ok := zoningLabels[strings.ToLower(s)]; ok {
		return canon
	}
	return s
}

func yesNo(s string) string {
	s = strings.TrimSpace(s)
	if canon, ok := yesNoWords[strings.ToLower(s)]; ok {
		return canon
	}
	return s
}

// matchCase applies the casing shape of src (all-caps, title, lower) to fix.
func matchCase(src, fix string) string {
	switch {
	case src == strings.ToUpper(src):
		return strings.ToUpper(fix)
	case len(src) > 0 && src[:1] == strings.ToUpper(src[:1]):
		return strings.ToUpper(fix[:1]) + fix[1:]
	default:
		return fix
	}
}
