package extract

import (
	"strings"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

// sizeMappings standardizes the ranges LinkedIn publishes into the display
// form the backend stores.
var sizeMappings = map[string]string{
	"1-10":       "1-10 employees",
	"11-50":      "11-50 employees",
	"51-200":     "51-200 employees",
	"201-500":    "201-500 employees",
	"501-1000":   "501-1000 employees",
	"1001-5000":  "1001-5000 employees",
	"5001-10000": "5001-10000 employees",
	"10000+":     "10,001+ employees",
}

// textAttributes are normalized by collapsing runs of whitespace.
var textAttributes = []string{"name", "about", "headline", "headquarters", "industry"}

// Normalize returns a cleaned copy of the extracted attributes. Bare
// websites gain an https scheme and employee ranges are standardized;
// other text values have whitespace collapsed. Non-string values pass
// through untouched.
func Normalize(fields enricher.CompanyFields) enricher.CompanyFields {
	if len(fields) == 0 {
		return fields
	}
	normalized := make(enricher.CompanyFields, len(fields))
	for k, v := range fields {
		normalized[k] = v
	}

	if website, ok := normalized["website"].(string); ok {
		website = strings.TrimSpace(website)
		if website != "" && !strings.HasPrefix(website, "http://") && !strings.HasPrefix(website, "https://") {
			website = "https://" + website
		}
		normalized["website"] = website
	}

	if size, ok := normalized["company_size"].(string); ok {
		size = strings.TrimSpace(size)
		if mapped, ok := sizeMappings[size]; ok {
			size = mapped
		}
		normalized["company_size"] = size
	}

	for _, attr := range textAttributes {
		if text, ok := normalized[attr].(string); ok {
			normalized[attr] = collapseSpace(text)
		}
	}

	return normalized
}
