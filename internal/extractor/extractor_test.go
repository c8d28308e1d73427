package extractor

import (
	"io"
	"log/slog"
	"testing"

	"github.com/crawlmesh/crawlmesh/internal/extractor/sites"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractMetadataAndText(t *testing.T) {
	html := `<html><head>
		<title> My Page </title>
		<meta name="description" content="a test page">
	</head><body>
		<p>Hello   world</p>
		<a href="/about">About</a>
		<a href="https://other.com/x">Other</a>
	</body></html>`

	e := New(testLogger(), nil)
	parsed, err := e.Extract([]byte(html), "", "https://example.com/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if parsed.Metadata["title"] != "My Page" {
		t.Errorf("title = %q, want %q", parsed.Metadata["title"], "My Page")
	}
	if parsed.Metadata["description"] != "a test page" {
		t.Errorf("description = %q", parsed.Metadata["description"])
	}
	if parsed.Text != "Hello world About Other" {
		t.Errorf("Text = %q", parsed.Text)
	}
	if len(parsed.LinksInternal) != 1 || parsed.LinksInternal[0] != "https://example.com/about" {
		t.Errorf("LinksInternal = %v", parsed.LinksInternal)
	}
	if len(parsed.LinksExternal) != 1 || parsed.LinksExternal[0] != "https://other.com/x" {
		t.Errorf("LinksExternal = %v", parsed.LinksExternal)
	}
}

func TestExtractEmptyBody(t *testing.T) {
	e := New(testLogger(), nil)
	parsed, err := e.Extract([]byte(""), "", "https://example.com/")
	if err != nil {
		t.Fatalf("Extract on empty body should not error: %v", err)
	}
	if parsed.Text != "" {
		t.Errorf("expected empty text, got %q", parsed.Text)
	}
	if len(parsed.LinksInternal) != 0 || len(parsed.LinksExternal) != 0 {
		t.Error("expected no links from an empty document")
	}
}

func TestExtractDedupsLinks(t *testing.T) {
	html := `<html><body>
		<a href="/a">1</a>
		<a href="/a">2</a>
		<a href="/a">3</a>
	</body></html>`
	e := New(testLogger(), nil)
	parsed, err := e.Extract([]byte(html), "", "https://example.com/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(parsed.LinksInternal) != 1 {
		t.Errorf("expected deduplicated internal links, got %v", parsed.LinksInternal)
	}
}

func TestStructuredDataJSONLD(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">{"@type":"Product","name":"Widget"}</script>
	</head><body></body></html>`
	e := New(testLogger(), nil)
	parsed, err := e.Extract([]byte(html), "", "https://example.com/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(parsed.StructuredData.JSONLD) != 1 {
		t.Fatalf("expected 1 JSON-LD block, got %d", len(parsed.StructuredData.JSONLD))
	}
	if parsed.StructuredData.JSONLD[0]["name"] != "Widget" {
		t.Errorf("JSON-LD name = %v", parsed.StructuredData.JSONLD[0]["name"])
	}
}

func TestStructuredDataJSONLDMalformedIsSkippedSilently(t *testing.T) {
	html := `<html><head>
		<script type="application/ld+json">{not valid json</script>
	</head><body></body></html>`
	e := New(testLogger(), nil)
	parsed, err := e.Extract([]byte(html), "", "https://example.com/")
	if err != nil {
		t.Fatalf("malformed JSON-LD must not surface as an extraction error: %v", err)
	}
	if len(parsed.StructuredData.JSONLD) != 0 {
		t.Errorf("expected malformed JSON-LD to be dropped, got %v", parsed.StructuredData.JSONLD)
	}
}

func TestExtractPopulatesExtraFromMatchingSiteExtractor(t *testing.T) {
	html := `<html><body>
		<h1 class="product-name">Widget 3000</h1>
		<span class="price">$19.99</span>
	</body></html>`

	reg := sites.NewRegistry()
	reg.Register(sites.NewExtractor(
		sites.PatternMatcher(`/product/`),
		[]sites.Rule{
			{Name: "name", Type: sites.RuleCSS, Selector: ".product-name"},
			{Name: "price", Type: sites.RuleCSS, Selector: ".price"},
		},
		map[string]string{"name": "name", "price": "price"},
	))

	e := New(testLogger(), reg)
	parsed, err := e.Extract([]byte(html), "", "https://example.com/product/123")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	record, ok := parsed.Extra["product"].(*sites.ProductRecord)
	if !ok {
		t.Fatalf("expected a *sites.ProductRecord in Extra[\"product\"], got %v", parsed.Extra["product"])
	}
	if record.Name != "Widget 3000" || record.Price != "$19.99" {
		t.Errorf("record = %+v", record)
	}
}

func TestExtractSkipsSiteExtractionForUnmatchedURL(t *testing.T) {
	reg := sites.NewRegistry()
	reg.Register(sites.NewExtractor(sites.PatternMatcher(`/product/`), nil, nil))

	e := New(testLogger(), reg)
	parsed, err := e.Extract([]byte("<html><body>plain page</body></html>"), "", "https://example.com/about")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if parsed.Extra != nil {
		t.Errorf("expected no Extra for a URL no site extractor matches, got %v", parsed.Extra)
	}
}

func TestStructuredDataOpenGraphAndTwitter(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="OG Title">
		<meta name="twitter:card" content="summary">
	</head><body></body></html>`
	e := New(testLogger(), nil)
	parsed, err := e.Extract([]byte(html), "", "https://example.com/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if parsed.StructuredData.OpenGraph["title"] != "OG Title" {
		t.Errorf("OpenGraph[title] = %q", parsed.StructuredData.OpenGraph["title"])
	}
	if parsed.StructuredData.Twitter["card"] != "summary" {
		t.Errorf("Twitter[card] = %q", parsed.StructuredData.Twitter["card"])
	}
}
