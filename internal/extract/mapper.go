package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

// FromSearchJSON maps a search-API company payload onto the standard
// attribute names. The payload is decoded dynamically so shape drift in
// optional attributes never fails the whole mapping.
func FromSearchJSON(data []byte) enricher.CompanyFields {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return enricher.CompanyFields{}
	}

	fields := enricher.CompanyFields{}
	putText := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fields[key] = value
		}
	}
	putAny := func(key string, value any) {
		if value != nil {
			fields[key] = value
		}
	}

	putText("name", stringValue(raw["name"]))
	putText("about", stringValue(raw["description"]))
	putText("headline", stringValue(raw["tagline"]))
	putText("website", stringValue(raw["website"]))
	putText("universalName", stringValue(raw["universalName"]))
	putText("crunchbaseUrl", stringValue(raw["crunchbaseUrl"]))
	putText("type", stringValue(raw["type"]))

	if hq, ok := raw["headquarter"].(map[string]any); ok {
		putText("headquarters", stringValue(hq["city"]))
	}
	if industries, ok := raw["industries"].([]any); ok && len(industries) > 0 {
		putText("industry", stringValue(industries[0]))
	}
	if specs, ok := raw["specialities"].([]any); ok && len(specs) > 0 {
		parts := make([]string, 0, len(specs))
		for _, s := range specs {
			if v := strings.TrimSpace(stringValue(s)); v != "" {
				parts = append(parts, v)
			}
		}
		putText("specialties", strings.Join(parts, ", "))
	}
	if founded, ok := raw["founded"].(map[string]any); ok {
		putText("founded", numberString(founded["year"]))
	}

	// Prefer the published range; fall back to the raw staff count.
	size := stringValue(raw["staffCountRange"])
	if size == "" {
		size = numberString(raw["staffCount"])
	}
	putText("company_size", size)
	putText("followers", numberString(raw["followerCount"]))

	if logos, ok := raw["logos"].([]any); ok && len(logos) > 0 {
		if last, ok := logos[len(logos)-1].(map[string]any); ok {
			putText("companyLogo", stringValue(last["url"]))
		}
	}

	putAny("phone", raw["phone"])
	putAny("staffCount", raw["staffCount"])
	putAny("locations", raw["locations"])
	putAny("fundingData", raw["fundingData"])

	return Normalize(fields)
}

// stringValue renders scalar JSON values as text. Objects and arrays yield
// an empty string.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return numberString(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// numberString formats JSON numbers without a fractional part when they are
// whole, which covers follower and staff counts.
func numberString(v any) string {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return strings.TrimSpace(t)
	default:
		return ""
	}
}
