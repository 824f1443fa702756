// Package normalize implements the URL Canonicalizer and URL Filter: the
// two admission-adjacent stages the scheduler runs every discovered link
// through before it ever reaches the frontier or the pattern deduper.
package normalize

import (
	"net/url"
	"strconv"
	"strings"
)

// trackingParams are stripped case-insensitively; every other query
// parameter is preserved in its original order.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"msclkid":      {},
}

// Canonicalize resolves raw (possibly relative) against base and produces
// a canonical absolute URL string. ok is false when the input must be
// skipped without error: empty input, a pure fragment, or a resolved URL
// with no host or a non-http(s) scheme. err is non-nil only when raw
// cannot be parsed at all.
func Canonicalize(raw string, base url.URL) (canonical string, ok bool, err *NormalizeError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false, nil
	}
	if strings.HasPrefix(trimmed, "#") {
		return "", false, nil
	}

	ref, parseErr := url.Parse(trimmed)
	if parseErr != nil {
		return "", false, &NormalizeError{
			Message: parseErr.Error(),
			Cause:   ErrCauseInvalidURL,
		}
	}

	resolved := base.ResolveReference(ref)

	scheme := lowerASCII(resolved.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false, nil
	}
	if resolved.Host == "" {
		return "", false, nil
	}

	resolved.Scheme = scheme
	resolved.Host = lowerASCII(resolved.Host)

	resolved.Fragment = ""
	resolved.RawFragment = ""

	resolved.RawQuery = stripTrackingParams(resolved.RawQuery)

	resolved.Path = collapsePath(resolved.Path)
	if len(resolved.Path) > 1 {
		resolved.Path = strings.TrimRight(resolved.Path, "/")
		if resolved.Path == "" {
			resolved.Path = "/"
		}
	}
	resolved.RawPath = ""

	return resolved.String(), true, nil
}

// stripTrackingParams removes every key in trackingParams from a raw query
// string, preserving the relative order of the parameters that remain.
func stripTrackingParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key := pair
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key = pair[:idx]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// collapsePath removes empty ("//") and "." ("/./") segments from an
// absolute path, leaving the leading slash intact.
func collapsePath(p string) string {
	if p == "" {
		return p
	}
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		if seg == "." {
			continue
		}
		if seg == "" {
			if i == 0 {
				out = append(out, seg)
			}
			continue
		}
		out = append(out, seg)
	}
	result := strings.Join(out, "/")
	if result == "" {
		result = "/"
	}
	return result
}

// lowerASCII lowercases ASCII letters without allocating when nothing
// needs to change.
func lowerASCII(s string) string {
	needsLower := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// urlDepth counts non-empty path segments; used by the extraction pipeline
// for PageRecord.URLDepth, kept here next to path handling.
func urlDepth(p string) int {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	depth := 0
	for _, s := range segments {
		if s != "" {
			depth++
		}
	}
	return depth
}

// URLDepth exports urlDepth for callers outside this package.
func URLDepth(p string) int {
	return urlDepth(p)
}

// ParseContentLength is a small shared helper: many callers across the
// pipeline need a best-effort integer parse of a Content-Length header
// without failing the page on a malformed value.
func ParseContentLength(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
