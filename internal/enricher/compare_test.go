package enricher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCompareBothProviders(t *testing.T) {
	data := &mockDataService{}
	data.On("GetWebpage", mock.Anything, "wp-1").Return(pendingRecord("wp-1"), nil)

	primary := &stubProvider{name: "primary", content: Content{Kind: ContentHTML}}
	fallback := &stubProvider{name: "fallback", content: Content{Kind: ContentJSON}}

	p := newTestProcessor(data, primary, fallback, testExtractor(), Config{})
	report, err := p.Compare(context.Background(), "wp-1")
	require.NoError(t, err)

	assert.Equal(t, "wp-1", report.WebpageID)
	assert.Equal(t, "https://www.linkedin.com/company/acme", report.URL)
	assert.True(t, report.Primary.Fetched)
	assert.True(t, report.Fallback.Fetched)
	assert.Equal(t, 2, report.Primary.FieldsExtracted)
	assert.Equal(t, 2, report.Fallback.FieldsExtracted)

	// Merged prefers the primary view and fills gaps from the fallback.
	assert.Equal(t, 3, report.MergedFields)
	assert.Equal(t, "Robotics", report.Merged["industry"])
	assert.Equal(t, "https://acme.example", report.Merged["website"])

	data.AssertNotCalled(t, "UpdateWebpage", mock.Anything, mock.Anything, mock.Anything)
	data.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	data.AssertNotCalled(t, "CleanupWebpage", mock.Anything, mock.Anything)
	data.AssertNotCalled(t, "ApplyCompanyEnrichment", mock.Anything, mock.Anything, mock.Anything)
}

func TestComparePrimaryFailureIsCaptured(t *testing.T) {
	data := &mockDataService{}
	data.On("GetWebpage", mock.Anything, "wp-1").Return(pendingRecord("wp-1"), nil)

	primary := &stubProvider{name: "primary", err: &ProviderError{Provider: "primary", Reason: "status 500", StatusCode: 500, Retryable: true}}
	fallback := &stubProvider{name: "fallback", content: Content{Kind: ContentJSON}}

	p := newTestProcessor(data, primary, fallback, testExtractor(), Config{})
	report, err := p.Compare(context.Background(), "wp-1")
	require.NoError(t, err)

	assert.False(t, report.Primary.Fetched)
	assert.Contains(t, report.Primary.FailureReason, "primary provider")
	assert.True(t, report.Fallback.Fetched)
	assert.Equal(t, report.Fallback.FieldsExtracted, report.MergedFields)
}

func TestCompareWithoutFallback(t *testing.T) {
	data := &mockDataService{}
	data.On("GetWebpage", mock.Anything, "wp-1").Return(pendingRecord("wp-1"), nil)

	primary := &stubProvider{name: "primary", content: Content{Kind: ContentHTML}}

	p := newTestProcessor(data, primary, nil, testExtractor(), Config{})
	report, err := p.Compare(context.Background(), "wp-1")
	require.NoError(t, err)

	assert.True(t, report.Primary.Fetched)
	assert.False(t, report.Fallback.Fetched)
	assert.Equal(t, "fallback provider not configured", report.Fallback.FailureReason)
	assert.Equal(t, report.Primary.FieldsExtracted, report.MergedFields)
}

func TestCompareUnusableURL(t *testing.T) {
	rec := pendingRecord("wp-1")
	rec.URL = "https://example.com/about"

	data := &mockDataService{}
	data.On("GetWebpage", mock.Anything, "wp-1").Return(rec, nil)

	p := newTestProcessor(data, &stubProvider{name: "primary"}, nil, testExtractor(), Config{})
	_, err := p.Compare(context.Background(), "wp-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unusable profile url")
}
