package enricher

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`linkedin\.com/[^/]+/([^/?#]+)`)

// ValidateCompanyURL checks that a URL points at a LinkedIn company or
// school profile.
func ValidateCompanyURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Host)
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return fmt.Errorf("not a linkedin url: %s", rawURL)
	}
	path := strings.ToLower(u.Path)
	if !strings.HasPrefix(path, "/company/") && !strings.HasPrefix(path, "/school/") {
		return fmt.Errorf("not a company profile url: %s", rawURL)
	}
	return nil
}

// CleanProfileURL normalizes a profile URL for fetching: https scheme,
// lowercase host, no query, fragment, or trailing slash.
func CleanProfileURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" && u.Host == "" {
		u, err = url.Parse("https://" + strings.TrimSpace(rawURL))
		if err != nil {
			return "", fmt.Errorf("parse url: %w", err)
		}
	}
	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

// CompanyUsername extracts the company identifier from a profile URL, e.g.
// "acme-corp" from https://www.linkedin.com/company/acme-corp/about.
func CompanyUsername(rawURL string) (string, error) {
	m := usernamePattern.FindStringSubmatch(rawURL)
	if len(m) < 2 || m[1] == "" {
		return "", fmt.Errorf("no company identifier in url: %s", rawURL)
	}
	return m[1], nil
}
