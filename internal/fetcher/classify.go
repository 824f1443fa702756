package fetcher

import "strings"

// minSniffableBodyLength is the shortest body that can plausibly be an
// HTML page; anything shorter is never classified as HTML by sniffing.
const minSniffableBodyLength = 10

var htmlBodyMarkers = []string{
	"<html",
	"<body",
	"<div",
	"<p",
	"<a ",
	"<script",
	"<title",
	"<!doctype html",
}

// IsHTMLContent decides whether a fetched body should be treated as HTML.
// The content-type header is authoritative when it names HTML, XHTML, XML
// or plain text; otherwise the body is sniffed for common markup tags.
func IsHTMLContent(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"),
		strings.Contains(ct, "application/xhtml"),
		strings.Contains(ct, "xml"),
		strings.Contains(ct, "text/plain"):
		return true
	}

	if len(body) < minSniffableBodyLength {
		return false
	}

	lowered := strings.ToLower(string(body))
	for _, marker := range htmlBodyMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
