package normalize

import (
	"net/url"
	"strings"
)

const maxURLLength = 500
const maxQueryAmpersands = 8

// Admit decides whether a canonical URL may be enqueued, given the crawl's
// base URL and filter configuration (§4.2). Canonical must already have
// passed through Canonicalize — Admit does not re-resolve or re-lowercase.
func Admit(canonical string, base url.URL, cfg FilterConfig) bool {
	parsed, err := url.Parse(canonical)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	if !sameOrSubdomain(parsed.Hostname(), base.Hostname()) {
		return false
	}

	if parsed.Fragment != "" {
		return false
	}

	if len(canonical) > maxURLLength {
		return false
	}

	if strings.Count(parsed.RawQuery, "&") > maxQueryAmpersands {
		return false
	}

	lowerPath := strings.ToLower(parsed.Path)
	for _, ext := range cfg.AssetExtensionBlacklist {
		if strings.HasSuffix(lowerPath, ext) {
			return false
		}
	}

	lowerURL := strings.ToLower(canonical)
	for _, needle := range cfg.SubstringBlacklist {
		if strings.Contains(lowerURL, needle) {
			return false
		}
	}

	return true
}

// sameOrSubdomain reports whether host equals baseHost or is a true
// dot-separated subdomain of it. "evil-example.com" must NOT match
// "example.com"; "api.example.com" must.
func sameOrSubdomain(host, baseHost string) bool {
	host = strings.ToLower(host)
	baseHost = strings.ToLower(baseHost)
	if host == baseHost {
		return true
	}
	return strings.HasSuffix(host, "."+baseHost)
}

// IsPDFPath reports whether a path's extension indicates a PDF document,
// used by the Extraction Pipeline to populate PageRecord.PDFFiles for
// non-HTML responses (§4.8).
func IsPDFPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}
