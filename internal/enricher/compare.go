package enricher

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Compare fetches one webpage through both providers independently and
// reports what each extracted, plus a primary-preferring merge of the
// two views. It is read only: nothing is written back and no terminal
// outcome is produced.
func (p *Processor) Compare(ctx context.Context, webpageID string) (CompareReport, error) {
	rec, err := p.data.GetWebpage(ctx, webpageID)
	if err != nil {
		return CompareReport{}, fmt.Errorf("load webpage %s: %w", webpageID, err)
	}
	profileURL, err := CleanProfileURL(rec.URL)
	if err == nil {
		err = ValidateCompanyURL(profileURL)
	}
	if err != nil {
		return CompareReport{}, fmt.Errorf("unusable profile url %q: %w", rec.URL, err)
	}

	report := CompareReport{WebpageID: webpageID, URL: profileURL}
	report.Primary = p.compareAttempt(ctx, p.primary, profileURL)
	if p.fallback != nil {
		report.Fallback = p.compareAttempt(ctx, p.fallback, profileURL)
	} else {
		report.Fallback = ProviderReport{
			Provider:      string(ProviderFallback),
			FailureReason: "fallback provider not configured",
		}
	}

	report.Merged = report.Primary.Fields.Merge(report.Fallback.Fields)
	report.MergedFields = report.Merged.FieldsExtracted()

	p.logger.Info("provider comparison finished",
		zap.String("webpage_id", webpageID),
		zap.Int("primary_fields", report.Primary.FieldsExtracted),
		zap.Int("fallback_fields", report.Fallback.FieldsExtracted),
		zap.Int("merged_fields", report.MergedFields))
	return report, nil
}

// compareAttempt runs one provider for the diagnostic. Failures are
// captured in the report instead of ending the comparison.
func (p *Processor) compareAttempt(ctx context.Context, provider FetchProvider, profileURL string) ProviderReport {
	report := ProviderReport{Provider: provider.Name()}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	start := p.clock.Now()
	content, err := provider.Fetch(fetchCtx, profileURL)
	report.Duration = p.clock.Now().Sub(start)
	if err != nil {
		report.FailureReason = err.Error()
		return report
	}

	report.Fetched = true
	report.Fields = p.extractor.Extract(content)
	report.FieldsExtracted = report.Fields.FieldsExtracted()
	report.Quality = report.Fields.Quality()
	return report
}
