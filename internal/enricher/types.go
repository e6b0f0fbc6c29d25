// Package enricher implements the enrichment pipeline core: the shared
// domain types, the provider fallback sequence, and the persistence of
// terminal outcomes.
package enricher

import "time"

// WebpageStatus represents the lifecycle state of a webpage record.
type WebpageStatus string

// Webpage status values owned by the backend.
const (
	WebpageStatusPending   WebpageStatus = "pending"
	WebpageStatusProcessed WebpageStatus = "processed"
	WebpageStatusFailed    WebpageStatus = "failed"
)

// WebpageRecord is the backend's view of a webpage queued for enrichment.
type WebpageRecord struct {
	WebpageID       string        `json:"webpageId"`
	NodeID          string        `json:"nodeId,omitempty"`
	UserID          string        `json:"userId,omitempty"`
	URL             string        `json:"url"`
	RawContent      string        `json:"rawContent,omitempty"`
	ExtractedFields CompanyFields `json:"extractedFields,omitempty"`
	Status          WebpageStatus `json:"status"`
	LastError       string        `json:"lastError,omitempty"`
}

// CompanyFields maps extracted attribute names to values. There are no
// required attributes; any non-empty extraction is a usable partial result.
type CompanyFields map[string]any

// KeyFields are the attributes that drive the extraction quality
// classification. They do not gate success.
var KeyFields = []string{
	"name", "about", "website", "industry",
	"headquarters", "headline", "company_size", "followers",
}

// FieldsExtracted counts populated attributes. Empty strings, nil values,
// zero numbers, and empty collections do not count.
func (f CompanyFields) FieldsExtracted() int {
	n := 0
	for _, v := range f {
		if populated(v) {
			n++
		}
	}
	return n
}

// KeyFieldCount counts populated key attributes.
func (f CompanyFields) KeyFieldCount() int {
	n := 0
	for _, k := range KeyFields {
		if populated(f[k]) {
			n++
		}
	}
	return n
}

// Quality classifies extraction completeness from the key attribute count.
func (f CompanyFields) Quality() ExtractionQuality {
	switch k := f.KeyFieldCount(); {
	case k >= 6:
		return QualityFull
	case k >= 3:
		return QualityPartial
	default:
		return QualityMinimal
	}
}

// Merge copies populated attributes from other that are absent or empty in
// the receiver, returning the merged copy. Used by the comparison
// diagnostic to combine provider views.
func (f CompanyFields) Merge(other CompanyFields) CompanyFields {
	merged := make(CompanyFields, len(f)+len(other))
	for k, v := range f {
		merged[k] = v
	}
	for k, v := range other {
		if !populated(merged[k]) && populated(v) {
			merged[k] = v
		}
	}
	return merged
}

func populated(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// ExtractionQuality grades how complete an extraction is.
type ExtractionQuality string

// Quality grades recorded in metadata and metrics.
const (
	QualityFull    ExtractionQuality = "full"
	QualityPartial ExtractionQuality = "partial"
	QualityMinimal ExtractionQuality = "minimal"
)

// ContentKind identifies the shape of fetched provider content.
type ContentKind string

// Content kinds produced by the providers.
const (
	ContentHTML ContentKind = "html"
	ContentJSON ContentKind = "json"
)

// Content is the raw payload a provider fetched for a company profile.
type Content struct {
	Kind ContentKind
	Data []byte
}

// ProviderName identifies which provider produced a result. The names are
// positional: the reader provider is always primary, the search provider
// always fallback.
type ProviderName string

// Provider positions in the fallback sequence.
const (
	ProviderPrimary  ProviderName = "primary"
	ProviderFallback ProviderName = "fallback"
)

// ProviderError is the typed failure a provider returns. Retryable controls
// only whether the fallback sequence continues; there is no retry loop.
// StatusCode is zero when no HTTP response was received.
type ProviderError struct {
	Provider   string
	Reason     string
	StatusCode int
	Retryable  bool
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return e.Provider + " provider: " + e.Reason
}

// OutcomeKind tags the terminal result of one invocation.
type OutcomeKind string

// Terminal outcome kinds. Every invocation that does not error produces
// exactly one of these.
const (
	OutcomeSucceeded     OutcomeKind = "succeeded"
	OutcomeFailedCleaned OutcomeKind = "failed_cleaned"
	OutcomeFailedMarked  OutcomeKind = "failed_marked"
)

// ProcessingOutcome is the terminal result of one invocation.
type ProcessingOutcome struct {
	Kind             OutcomeKind
	Via              ProviderName
	NodeID           string
	FieldsExtracted  int
	NodesUpdated     int
	Quality          ExtractionQuality
	Reason           string
	AlreadyProcessed bool
}

// Succeeded reports whether the outcome is a success.
func (o ProcessingOutcome) Succeeded() bool {
	return o.Kind == OutcomeSucceeded
}

// Request identifies one invocation's target.
type Request struct {
	WebpageID string
	UserID    string
	Trigger   string
}

// InvocationRecord is journaled once per terminal outcome.
type InvocationRecord struct {
	InvocationID    string
	WebpageID       string
	WorkerID        string
	Outcome         OutcomeKind
	Via             ProviderName
	FieldsExtracted int
	NodesUpdated    int
	Reason          string
	Duration        time.Duration
	StartedAt       time.Time
}

// ProviderReport is one provider's view in a comparison run.
type ProviderReport struct {
	Provider        string
	Fetched         bool
	FailureReason   string
	FieldsExtracted int
	Quality         ExtractionQuality
	Duration        time.Duration
	Fields          CompanyFields
}

// CompareReport is the result of the read-only provider comparison
// diagnostic for one webpage.
type CompareReport struct {
	WebpageID    string
	URL          string
	Primary      ProviderReport
	Fallback     ProviderReport
	Merged       CompanyFields
	MergedFields int
}
