package enricher

import (
	"context"
	"time"
)

// FetchProvider turns a company profile URL into raw page content. A
// failure is returned as a *ProviderError so the fallback sequence can
// decide whether to continue.
type FetchProvider interface {
	Name() string
	Fetch(ctx context.Context, profileURL string) (Content, error)
}

// Extractor converts raw fetched content into company fields. It is a pure
// transform: malformed input yields an empty result, never an error.
type Extractor interface {
	Extract(content Content) CompanyFields
}

// DataService reads and writes webpage and node records through the
// backend API.
type DataService interface {
	GetWebpage(ctx context.Context, webpageID string) (WebpageRecord, error)
	UpdateWebpage(ctx context.Context, webpageID string, fields CompanyFields) error
	MarkFailed(ctx context.Context, webpageID, errType, errMessage string) error
	CleanupWebpage(ctx context.Context, webpageID string) error
	ApplyCompanyEnrichment(ctx context.Context, webpageID string, fields CompanyFields) (int, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Recorder journals one record per terminal outcome.
type Recorder interface {
	RecordInvocation(ctx context.Context, rec InvocationRecord) error
}

// Publisher pushes outcome events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for archive keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces invocation IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
