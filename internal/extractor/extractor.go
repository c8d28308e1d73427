// Package extractor implements the default page extractor of §4.4:
// decode, metadata, structured data, text, and link partitioning, plus a
// registry of pluggable site-specific extractors (internal/extractor/sites).
package extractor

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/crawlmesh/crawlmesh/internal/extractor/sites"
	"github.com/crawlmesh/crawlmesh/internal/types"
	"github.com/crawlmesh/crawlmesh/internal/urlcatalog"
)

// Extractor is the default generic extractor consumed by the Worker Loop.
// A nil registry simply skips site-specific extraction.
type Extractor struct {
	logger     *slog.Logger
	structured *StructuredDataExtractor
	registry   *sites.Registry
}

// New builds an Extractor. registry may be nil.
func New(logger *slog.Logger, registry *sites.Registry) *Extractor {
	return &Extractor{
		logger:     logger.With("component", "extractor"),
		structured: NewStructuredDataExtractor(logger),
		registry:   registry,
	}
}

// Extract implements §4.4: decode per declaredEncoding (falling back to
// UTF-8 with replacement), then pulls metadata, structured data, text,
// and internal/external links relative to url.
func (e *Extractor) Extract(body []byte, declaredEncoding, pageURL string) (*types.ParsedPage, error) {
	decoded, err := decodeBody(body, declaredEncoding)
	if err != nil {
		decoded = body
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(decoded)))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}

	metadata := extractMetadata(doc)
	sd := e.structured.Extract(doc)
	text := strings.TrimSpace(doc.Find("body").Text())
	internal, external := extractLinks(doc, pageURL)

	parsed := &types.ParsedPage{
		Metadata:       metadata,
		StructuredData: sd,
		Text:           collapseWhitespace(text),
		LinksInternal:  internal,
		LinksExternal:  external,
	}

	if site := e.siteFor(pageURL); site != nil {
		record, err := site.Extract(decoded)
		if err != nil {
			e.logger.Warn("site extractor failed", "url", pageURL, "error", err)
		} else if record != nil {
			parsed.Extra = map[string]any{"product": record}
		}
	}

	return parsed, nil
}

// siteFor looks up a pluggable site extractor for url, nil-safe when no
// registry was configured.
func (e *Extractor) siteFor(url string) *sites.Extractor {
	if e.registry == nil {
		return nil
	}
	return e.registry.For(url)
}

// decodeBody decodes body using the declared encoding label; on any
// failure (including no declared encoding) it falls back to UTF-8 with
// error replacement, per §4.4 and the "no declared encoding" boundary
// behavior.
func decodeBody(body []byte, declaredEncoding string) ([]byte, error) {
	if declaredEncoding != "" {
		if reader, err := charset.NewReaderLabel(declaredEncoding, bytes.NewReader(body)); err == nil {
			if out, rerr := io.ReadAll(reader); rerr == nil {
				return out, nil
			}
		}
	}
	reader, err := charset.NewReader(bytes.NewReader(body), "text/html; charset=utf-8")
	if err != nil {
		return body, nil
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return body, nil
	}
	return out, nil
}

// extractMetadata pulls <title> and every <meta name|property|itemprop>
// mapped to its content, key lowercased.
func extractMetadata(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		content, ok := sel.Attr("content")
		if !ok || content == "" {
			return
		}
		for _, attr := range []string{"name", "property", "itemprop"} {
			if key, ok := sel.Attr(attr); ok && key != "" {
				meta[strings.ToLower(key)] = content
				return
			}
		}
	})

	return meta
}

// extractLinks resolves every <a href> against pageURL via the URL
// Catalog, partitions by host equality, and deduplicates.
func extractLinks(doc *goquery.Document, pageURL string) (internal, external []string) {
	seenInternal := make(map[string]bool)
	seenExternal := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved, err := urlcatalog.Resolve(pageURL, href)
		if err != nil || resolved == "" {
			return
		}
		if urlcatalog.IsInternal(pageURL, href) {
			if !seenInternal[resolved] {
				seenInternal[resolved] = true
				internal = append(internal, resolved)
			}
		} else {
			if !seenExternal[resolved] {
				seenExternal[resolved] = true
				external = append(external, resolved)
			}
		}
	})

	return internal, external
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
