package extractor

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mascanho/seocrawl/internal/crawl"
)

var errUnresolvableLink = errors.New("link does not resolve to an http(s) URL")

// titleFrom picks the page title with the same fallback order a search
// engine snippet generator would use: <title>, then the first <h1>, then
// the first <h2>, then a meta title (name="title", or og:title given as
// either name or property).
func titleFrom(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h2").First().Text()); t != "" {
		return t
	}
	var metaTitle string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		property, _ := s.Attr("property")
		if strings.EqualFold(name, "title") || strings.EqualFold(name, "og:title") || strings.EqualFold(property, "og:title") {
			if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
				metaTitle = strings.TrimSpace(content)
				return false
			}
		}
		return true
	})
	return metaTitle
}

func descriptionFrom(doc *goquery.Document) string {
	var desc string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		property, _ := s.Attr("property")
		if strings.EqualFold(name, "description") || strings.EqualFold(property, "og:description") {
			if content, ok := s.Attr("content"); ok && strings.TrimSpace(content) != "" {
				desc = strings.TrimSpace(content)
				return false
			}
		}
		return true
	})
	return desc
}

// headingsFrom returns every h1-h6 as "h2: text", in document order.
func headingsFrom(doc *goquery.Document) []string {
	var headings []string
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		tag := goquery.NodeName(s)
		headings = append(headings, tag+": "+text)
	})
	return headings
}

func imagesFrom(doc *goquery.Document) (urls []string, alts []string) {
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, _ := s.Attr("alt")
		urls = append(urls, src)
		alts = append(alts, alt)
	})
	return urls, alts
}

func canonicalsFrom(doc *goquery.Document) []string {
	var canonicals []string
	doc.Find(`link[rel="canonical"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			canonicals = append(canonicals, href)
		}
	})
	return canonicals
}

func hreflangsFrom(doc *goquery.Document) []string {
	var hreflangs []string
	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		lang, hasLang := s.Attr("hreflang")
		href, hasHref := s.Attr("href")
		if hasLang && hasHref {
			hreflangs = append(hreflangs, lang+": "+href)
		}
	})
	return hreflangs
}

// metaRobotsFrom joins every meta[name=robots] content value with a comma,
// matching how most auditing tools display a combined directive.
func metaRobotsFrom(doc *goquery.Document) string {
	var directives []string
	doc.Find(`meta[name="robots"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok && content != "" {
			directives = append(directives, content)
		}
	})
	return strings.Join(directives, ", ")
}

// indexableFrom is true unless a noindex directive is present in either
// meta robots or X-Robots-Tag. httpHeaderRobots is the raw response header
// value; matching is case-insensitive.
func indexableFrom(metaRobots string, httpHeaderRobots string) bool {
	combined := strings.ToLower(metaRobots + " " + httpHeaderRobots)
	return !strings.Contains(combined, "noindex")
}

func schemaJSONLDFrom(doc *goquery.Document) string {
	var blob string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			blob = text
			return false
		}
		return true
	})
	return blob
}

func languageFrom(doc *goquery.Document) string {
	lang, _ := doc.Find("html").First().Attr("lang")
	return lang
}

func mobileViewportFrom(doc *goquery.Document) bool {
	return doc.Find(`meta[name="viewport"]`).Length() > 0
}

// linksFrom walks every <a href> and classifies it internal or external
// relative to baseHost, resolving relative hrefs against pageURL. Hrefs
// that are empty, pure fragments, javascript:, or mailto:/tel: are
// skipped — they were never navigable in the first place.
func linksFrom(doc *goquery.Document, pageURL url.URL) (internalLinks, externalLinks []crawl.LinkRef) {
	baseHost := strings.TrimPrefix(strings.ToLower(pageURL.Host), "www.")

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		resolved, err := resolveHref(pageURL, href)
		if err != nil {
			return
		}

		ref := crawl.LinkRef{
			URL:        resolved.String(),
			AnchorText: strings.TrimSpace(s.Text()),
		}
		if rel, ok := s.Attr("rel"); ok {
			ref.Rel = rel
		}
		if title, ok := s.Attr("title"); ok {
			ref.Title = title
		}
		if target, ok := s.Attr("target"); ok {
			ref.Target = target
		}

		linkHost := strings.TrimPrefix(strings.ToLower(resolved.Host), "www.")
		if linkHost == baseHost || strings.HasSuffix(linkHost, "."+baseHost) {
			internalLinks = append(internalLinks, ref)
		} else {
			externalLinks = append(externalLinks, ref)
		}
	})

	return internalLinks, externalLinks
}

func resolveHref(base url.URL, href string) (*url.URL, error) {
	rel, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	resolved := base.ResolveReference(rel)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, errUnresolvableLink
	}
	return resolved, nil
}
