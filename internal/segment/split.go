package segment

import (
	"regexp"
	"strings"
)

// Gazette boilerplate stripped before segmentation. Non-printable characters
// go last so the line-anchored patterns still see their text.
var cleanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)STAATSKOERANT[^\n]*`),
	regexp.MustCompile(`(?i)GOVERNMENT GAZETTE[^\n]*`),
	regexp.MustCompile(`(?i)No\.\s*\d+\s*`),
	regexp.MustCompile(`(?i)Page\s*\d+\s*of\s*\d+`),
	regexp.MustCompile(`(?i)This gazette is also available free online at[^\n]*`),
	regexp.MustCompile(`(?i)HIGH ALERT: SCAM WARNING!!![^\n]*`),
	regexp.MustCompile(`(?i)CONTENTS / INHOUD[^\n]*`),
	regexp.MustCompile(`(?i)LEGAL NOTICES[^\n]*`),
	regexp.MustCompile(`(?i)WETLIKE KENNISGEWINGS[^\n]*`),
	regexp.MustCompile(`(?i)SALES IN EXECUTION AND OTHER PUBLIC SALES[^\n]*`),
	regexp.MustCompile(`(?i)GEREGTELIKE EN ANDER OPENBARE VERKOPE[^\n]*`),
	regexp.MustCompile(`[^\x20-\x7E]`),
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// delimiterRe is the case-number header that starts every listing. The
// optional letter prefix covers division-coded case numbers (e.g. D123/2024).
var delimiterRe = regexp.MustCompile(`(?i)Case No:\s*[A-Z]*\d+/\d+`)

// naturalKeyRe captures the case number itself, used as the uniqueness key.
var naturalKeyRe = regexp.MustCompile(`(?i)Case No:\s*([A-Z]*\d+/\d+)`)

// CleanText removes gazette boilerplate and collapses whitespace.
func CleanText(text string) string {
	for _, re := range cleanPatterns {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// SplitListings splits cleaned text into listings at each delimiter match.
// Text before the first match is header noise and is discarded; each listing
// spans from its match start to the next match start (the last runs to the
// end), so concatenating the listings reproduces the scanned span exactly.
func SplitListings(docID, text string) []ListingText {
	locs := delimiterRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	listings := make([]ListingText, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		listings = append(listings, ListingText{
			DocID: docID,
			Index: i,
			Text:  text[loc[0]:end],
		})
	}
	return listings
}

// ParseNaturalKey extracts the case number from a listing. The empty string
// means the key is unparseable; such listings are never deduplicated.
func ParseNaturalKey(text string) string {
	m := naturalKeyRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
