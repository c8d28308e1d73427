package extractor

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// StructuredDataExtractor pulls JSON-LD, OpenGraph, Twitter Card, and
// Microdata out of a parsed document — a direct extension of the §4.4
// "structured_data" scan beyond just json_ld.
type StructuredDataExtractor struct {
	logger *slog.Logger
}

// NewStructuredDataExtractor builds a StructuredDataExtractor.
func NewStructuredDataExtractor(logger *slog.Logger) *StructuredDataExtractor {
	return &StructuredDataExtractor{logger: logger.With("component", "structured_data")}
}

// Extract collects every structured-data family present in doc.
func (e *StructuredDataExtractor) Extract(doc *goquery.Document) types.StructuredData {
	return types.StructuredData{
		JSONLD:    e.extractJSONLD(doc),
		OpenGraph: e.extractMetaPrefix(doc, `meta[property^="og:"]`, "property", "og:"),
		Twitter:   e.extractTwitter(doc),
		Microdata: e.extractMicrodata(doc),
	}
}

// extractJSONLD parses every <script type="application/ld+json">; a
// parse failure is skipped silently, never surfaced as an error.
func (e *StructuredDataExtractor) extractJSONLD(doc *goquery.Document) []map[string]any {
	var results []map[string]any

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			results = append(results, obj)
			return
		}

		var arr []map[string]any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			results = append(results, arr...)
		}
	})

	return results
}

func (e *StructuredDataExtractor) extractMetaPrefix(doc *goquery.Document, selector, attr, prefix string) map[string]string {
	data := make(map[string]string)
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		key, _ := sel.Attr(attr)
		content, _ := sel.Attr("content")
		if key != "" && content != "" {
			data[strings.TrimPrefix(key, prefix)] = content
		}
	})
	return data
}

func (e *StructuredDataExtractor) extractTwitter(doc *goquery.Document) map[string]string {
	data := make(map[string]string)
	doc.Find(`meta[name^="twitter:"], meta[property^="twitter:"]`).Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		if name == "" {
			name, _ = sel.Attr("property")
		}
		content, _ := sel.Attr("content")
		if name != "" && content != "" {
			data[strings.TrimPrefix(name, "twitter:")] = content
		}
	})
	return data
}

func (e *StructuredDataExtractor) extractMicrodata(doc *goquery.Document) []map[string]any {
	var results []map[string]any

	doc.Find("[itemscope]:not([itemscope] [itemscope])").Each(func(_ int, sel *goquery.Selection) {
		data := make(map[string]any)

		if itemType, ok := sel.Attr("itemtype"); ok && itemType != "" {
			data["@type"] = itemType
		}

		sel.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
			name, _ := prop.Attr("itemprop")
			if name == "" {
				return
			}
			var value string
			switch {
			case attrVal(prop, "href") != "":
				value = attrVal(prop, "href")
			case attrVal(prop, "src") != "":
				value = attrVal(prop, "src")
			case attrVal(prop, "content") != "":
				value = attrVal(prop, "content")
			case attrVal(prop, "datetime") != "":
				value = attrVal(prop, "datetime")
			default:
				value = strings.TrimSpace(prop.Text())
			}
			if value != "" {
				data[name] = value
			}
		})

		if len(data) > 0 {
			results = append(results, data)
		}
	})

	return results
}

func attrVal(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return v
}
