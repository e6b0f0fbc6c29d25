package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

// Selectors for the public LinkedIn company page layout. The about section
// uses data-test-id attributes that have been stable across redesigns.
const (
	selName         = "h1.top-card-layout__title"
	selHeadline     = "h2.top-card-layout__headline"
	selSubline      = "h3.top-card-layout__first-subline"
	selAbout        = `p[data-test-id="about-us__description"]`
	selWebsite      = `div[data-test-id="about-us__website"] a`
	selIndustry     = `div[data-test-id="about-us__industry"] dd`
	selSize         = `div[data-test-id="about-us__size"] dd`
	selHeadquarters = `div[data-test-id="about-us__headquarters"] dd`
	selOrgType      = `div[data-test-id="about-us__organizationType"] dd`
	selSpecialties  = `div[data-test-id="about-us__specialties"] dd`
)

const redirectPrefix = "https://www.linkedin.com/redir/redirect?"

var (
	followersPattern = regexp.MustCompile(`(?i)([\d,]+)\s+followers`)
	sizePattern      = regexp.MustCompile(`(?i)([\d,]+(?:-[\d,]+|\+)?)\s+employees`)
	sizeLeadPattern  = regexp.MustCompile(`^[\d,-]+\+?`)
	careersTail      = regexp.MustCompile(`(?is)check out our career opportunities.*`)
	imprintTail      = regexp.MustCompile(`(?is)\*\*\* imprint / impressum:.*`)
)

// FromHTML extracts company attributes from a LinkedIn company page. Fields
// that cannot be located are omitted from the result.
func FromHTML(data []byte) enricher.CompanyFields {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return enricher.CompanyFields{}
	}

	fields := enricher.CompanyFields{}
	put := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fields[key] = value
		}
	}

	put("name", doc.Find(selName).First().Text())
	put("headline", doc.Find(selHeadline).First().Text())
	put("about", cleanAbout(doc.Find(selAbout).First().Text()))
	put("industry", doc.Find(selIndustry).First().Text())
	put("headquarters", doc.Find(selHeadquarters).First().Text())
	put("type", doc.Find(selOrgType).First().Text())
	put("specialties", doc.Find(selSpecialties).First().Text())
	put("company_size", standardizeSize(doc.Find(selSize).First().Text()))
	put("website", websiteFromAnchor(doc.Find(selWebsite).First()))

	if subline := collapseSpace(doc.Find(selSubline).First().Text()); subline != "" {
		if m := followersPattern.FindStringSubmatch(subline); m != nil {
			put("followers", strings.ReplaceAll(m[1], ",", ""))
			if _, ok := fields["headquarters"]; !ok {
				head := strings.TrimSpace(subline[:strings.Index(subline, m[0])])
				put("headquarters", strings.TrimSuffix(head, ","))
			}
		} else if _, ok := fields["headquarters"]; !ok {
			put("headquarters", subline)
		}
	}

	return Normalize(fields)
}

// cleanAbout strips boilerplate tails LinkedIn appends to descriptions and
// collapses the remaining text onto one line.
func cleanAbout(text string) string {
	text = careersTail.ReplaceAllString(text, "")
	text = imprintTail.ReplaceAllString(text, "")
	return collapseSpace(text)
}

// standardizeSize reduces the size blurb to "<range> employees". Text that
// carries no recognizable count is passed through untouched.
func standardizeSize(text string) string {
	text = collapseSpace(text)
	if text == "" {
		return ""
	}
	if m := sizePattern.FindStringSubmatch(text); m != nil {
		return m[1] + " employees"
	}
	if m := sizeLeadPattern.FindString(text); m != "" {
		return m + " employees"
	}
	return text
}

// websiteFromAnchor reads the href, falling back to the anchor text when it
// looks like a URL, and unwraps the LinkedIn redirect indirection.
func websiteFromAnchor(anchor *goquery.Selection) string {
	website, ok := anchor.Attr("href")
	if !ok || strings.TrimSpace(website) == "" {
		text := strings.TrimSpace(anchor.Text())
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			website = text
		}
	}
	website = strings.TrimSpace(website)
	if strings.HasPrefix(website, redirectPrefix) {
		if parsed, err := url.Parse(website); err == nil {
			if target := parsed.Query().Get("url"); target != "" {
				website = target
			}
		}
	}
	return website
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
