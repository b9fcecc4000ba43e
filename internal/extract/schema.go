package extract

// BuildAuctionJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to OpenAI as a structured output constraint and
// also use it locally to validate.
func BuildAuctionJSONSchema() map[string]any {
	props := map[string]any{
		"case_number":               map[string]any{"type": "string", "pattern": `^[A-Z]*\d+/\d+$`},
		"court_name":                map[string]any{"type": "string"},
		"plaintiff":                 map[string]any{"type": "string", "minLength": 1},
		"defendant":                 map[string]any{"type": "string", "minLength": 1},
		"auction_date":              dateOrNullProp(),
		"auction_time":              map[string]any{"type": "string", "pattern": `^\d{2}:\d{2}(:\d{2})?$`},
		"sheriff_office":            map[string]any{"type": "string"},
		"sheriff_address":           map[string]any{"type": "string"},
		"erf_number":                map[string]any{"type": "string"},
		"township":                  map[string]any{"type": "string"},
		"extension":                 map[string]any{"type": "string"},
		"registration_division":     map[string]any{"type": "string"},
		"province":                  map[string]any{"type": "string"},
		"stand_size":                nonNegativeInt(),
		"deed_of_transfer_number":   map[string]any{"type": "string"},
		"street_address":            map[string]any{"type": "string"},
		"zoning":                    map[string]any{"type": "string"},
		"reserve_price":             nonNegativeInt(),
		"bedrooms":                  nonNegativeInt(),
		"bathrooms":                 nonNegativeInt(),
		"kitchen":                   map[string]any{"type": "string"},
		"scullery":                  map[string]any{"type": "string"},
		"laundry":                   map[string]any{"type": "string"},
		"living_areas":              nonNegativeInt(),
		"garage":                    map[string]any{"type": "string"},
		"carport":                   map[string]any{"type": "string"},
		"other_structures":          map[string]any{"type": "string"},
		"registration_fee_required": map[string]any{"type": "string"},
		"fica_requirements":         map[string]any{"type": "string"},
		"attorney":                  map[string]any{"type": "string"},
		"attorney_contact":          map[string]any{"type": "string"},
		"attorney_reference":        map[string]any{"type": "string"},
		"notice_date":               dateOrNullProp(),
		"additional_fees":           map[string]any{"type": "string"},
		"total_estimated_cost":      nonNegativeInt(),
		"currency":                  map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"conditions_of_sale":        map[string]any{"type": "string"},
		"confidence":                map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		// A record is only worth persisting when it identifies the case,
		// names at least one party, and pins the auction date (null allowed
		// when the notice omits it).
		"required": []string{"case_number", "auction_date"},
		"anyOf": []map[string]any{
			{"required": []string{"plaintiff"}},
			{"required": []string{"defendant"}},
		},
	}
}

func dateOrNullProp() map[string]any {
	return map[string]any{
		"type":    []string{"string", "null"},
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
}

func nonNegativeInt() map[string]any {
	return map[string]any{"type": "integer", "minimum": 0}
}
