// Package extract turns raw provider content into structured company fields.
// It parses reader HTML with goquery selectors and maps search-API JSON
// payloads onto the standard attribute names used by the backend.
package extract

import (
	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

// CompanyExtractor converts provider content into company fields. Extraction
// is a pure transform; malformed or missing attributes are omitted rather
// than reported as errors.
type CompanyExtractor struct{}

// NewCompanyExtractor constructs an extractor for both provider content kinds.
func NewCompanyExtractor() *CompanyExtractor {
	return &CompanyExtractor{}
}

// Extract dispatches on the content kind. Unknown kinds yield no fields.
func (e *CompanyExtractor) Extract(content enricher.Content) enricher.CompanyFields {
	switch content.Kind {
	case enricher.ContentHTML:
		return FromHTML(content.Data)
	case enricher.ContentJSON:
		return FromSearchJSON(content.Data)
	default:
		return enricher.CompanyFields{}
	}
}
