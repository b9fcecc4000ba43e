package openai

import "strings"

func buildSystemPrompt() string {
	parts := []string{
		"You are a data extraction assistant for sheriff auction notices. Return ONLY JSON that matches the JSON Schema provided.",
		"Use ISO-8601 dates (YYYY-MM-DD) and 24h times (HH:MM).",
		"Currency must be a 3-letter ISO 4217 code; default to ZAR if uncertain.",
		"For 'sheriff_office', exclude words like acting, sheriff, office, the high court; return just the area name as a proper noun, not all caps.",
		"For 'street_address', give the auctioned property's address, never the auctioneer's; street number, road, suburb and city only.",
		"Remember that '.' is the cents separator, so R10.57 is ten rand fifty-seven cents, not 1057.",
		"For 'conditions_of_sale', return the lines following text like 'THE CONDITIONS OF SALE:' including the sheriff's fees and deposit required; if nothing is found return 'See Auction Description'.",
		"If a field is missing or unknown, omit it; never invent values.",
		"Do not wrap the JSON in markdown code blocks.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(listingText string) string {
	return "Extract the fields from this auction notice:\n\n" + listingText
}
