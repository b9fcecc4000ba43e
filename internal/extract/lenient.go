package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reDate    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reTime    = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
	reHHhMM   = regexp.MustCompile(`^(\d{1,2})[hH](\d{2})$`)
	intFields = []string{"stand_size", "reserve_price", "bedrooms", "bathrooms", "living_areas", "total_estimated_cost"}

	// The extraction prompt's sentinel for an unknown date. Stored records
	// carry null instead.
	sentinelDate = "2000-01-01"
)

// SanitizeOptionalFields removes or normalizes optional fields that don't meet
// our stricter schema, so the overall document can still validate. The
// required trio (case number, party, date-or-null) is never repaired here.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	// "None" placeholders from the model mean "omit". Dropping a required
	// field here makes schema validation fail, which is the point: a notice
	// with no case number or no party is not repairable.
	for k, v := range m {
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" || strings.EqualFold(s, "none") || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k)
				continue
			}
			m[k] = s
		}
	}

	// Integer fields: accept numeric strings and round floats; anything else
	// is dropped rather than failing the document.
	for _, k := range intFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t < 0 || t != math.Trunc(t) {
				delete(m, k)
				dropped = append(dropped, k)
			}
		case string:
			s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
			s = strings.TrimPrefix(s, "R")
			if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
				m[k] = n
			} else {
				delete(m, k)
				dropped = append(dropped, k)
			}
		default:
			delete(m, k)
			dropped = append(dropped, k)
		}
	}

	// auction_date is required (null allowed): sentinel and malformed values
	// become null. notice_date is optional and is simply dropped.
	if v, ok := m["auction_date"].(string); ok {
		if v == sentinelDate || !reDate.MatchString(v) {
			m["auction_date"] = nil
		}
	}
	if _, ok := m["auction_date"]; !ok {
		m["auction_date"] = nil
	}
	if v, ok := m["notice_date"].(string); ok {
		if v == sentinelDate || !reDate.MatchString(v) {
			delete(m, "notice_date")
			dropped = append(dropped, "notice_date")
		}
	}

	// auction_time: normalize the gazette's "11h00" style, drop the rest.
	if v, ok := m["auction_time"].(string); ok {
		s := strings.TrimSpace(v)
		if mm := reHHhMM.FindStringSubmatch(s); mm != nil {
			h := mm[1]
			if len(h) == 1 {
				h = "0" + h
			}
			s = h + ":" + mm[2]
		}
		if s == "00:00:00" || !reTime.MatchString(s) {
			delete(m, "auction_time")
			dropped = append(dropped, "auction_time")
		} else {
			m["auction_time"] = s
		}
	}

	// currency: normalize casing; drop anything that is not 3 letters.
	if v, ok := m["currency"].(string); ok {
		s := strings.ToUpper(strings.TrimSpace(v))
		if len(s) != 3 {
			delete(m, "currency")
			dropped = append(dropped, "currency")
		} else {
			m["currency"] = s
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return out, dropped, nil
}
