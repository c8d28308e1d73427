package sites

import "testing"

func TestExtractorCSSRulesProduceRecord(t *testing.T) {
	html := `<html><body>
		<h1 class="product-name">Widget 3000</h1>
		<span class="price">$19.99</span>
		<img class="thumb" src="https://cdn.example.com/w.jpg">
	</body></html>`

	ext := NewExtractor(
		PatternMatcher(`/product/`),
		[]Rule{
			{Name: "name", Type: RuleCSS, Selector: ".product-name"},
			{Name: "price", Type: RuleCSS, Selector: ".price"},
			{Name: "image", Type: RuleCSS, Selector: ".thumb", Attribute: "src"},
		},
		map[string]string{"name": "name", "price": "price", "image": "image"},
	)

	record, err := ext.Extract([]byte(html))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if record == nil {
		t.Fatal("expected a non-nil record")
	}
	if record.Name != "Widget 3000" {
		t.Errorf("Name = %q", record.Name)
	}
	if record.Price != "$19.99" {
		t.Errorf("Price = %q", record.Price)
	}
	if len(record.Images) != 1 || record.Images[0] != "https://cdn.example.com/w.jpg" {
		t.Errorf("Images = %v", record.Images)
	}
}

func TestExtractorRegexRule(t *testing.T) {
	body := []byte(`SKU: ABC-12345`)
	ext := NewExtractor(
		PatternMatcher(`.*`),
		[]Rule{{Name: "sku", Type: RuleRegex, Selector: `SKU: ([A-Z0-9-]+)`}},
		map[string]string{"sku": "sku"},
	)
	record, err := ext.Extract(body)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if record == nil || record.SKU != "ABC-12345" {
		t.Fatalf("expected SKU extracted, got %+v", record)
	}
}

func TestExtractorReturnsNilWhenNothingMatches(t *testing.T) {
	ext := NewExtractor(
		PatternMatcher(`.*`),
		[]Rule{{Name: "name", Type: RuleCSS, Selector: ".missing"}},
		map[string]string{"name": "name"},
	)
	record, err := ext.Extract([]byte("<html><body>nothing here</body></html>"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if record != nil {
		t.Errorf("expected nil record for no matches, got %+v", record)
	}
}

func TestRegistryForMatchesFirstRegisteredExtractor(t *testing.T) {
	reg := NewRegistry()
	productExt := NewExtractor(PatternMatcher(`/product/`), nil, nil)
	catalogExt := NewExtractor(PatternMatcher(`/catalog/`), nil, nil)
	reg.Register(productExt)
	reg.Register(catalogExt)

	if reg.For("https://example.com/product/123") != productExt {
		t.Error("expected product matcher to win for /product/ url")
	}
	if reg.For("https://example.com/catalog/abc") != catalogExt {
		t.Error("expected catalog matcher to win for /catalog/ url")
	}
	if reg.For("https://example.com/other") != nil {
		t.Error("expected no match for an unmatched url")
	}
}

func TestDigiKeyExtractorMatchesProductDetailPages(t *testing.T) {
	ext := NewDigiKeyExtractor()

	if !ext.Match("https://www.digikey.com/en/products/product-detail/abc/123") {
		t.Error("expected DigiKey extractor to match a product-detail url")
	}
	if ext.Match("https://www.digikey.com/en/products/category/resistors") {
		t.Error("expected DigiKey extractor not to match a category url")
	}

	html := `<html><body>
		<h1 class="product-name">10K Ohm Resistor</h1>
		<span class="manufacturer">Yageo</span>
		<div class="product-details"><h2>RC0603FR-0710KL</h2></div>
		<span class="product-number">311-10.0KCRCT-ND</span>
		<span class="stock-status">4,521 in stock</span>
		<div class="product-images"><img src="https://media.digikey.com/photos/r.jpg"></div>
	</body></html>`

	record, err := ext.Extract([]byte(html))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if record == nil {
		t.Fatal("expected a non-nil record")
	}
	if record.Name != "10K Ohm Resistor" {
		t.Errorf("Name = %q", record.Name)
	}
	if record.SKU != "311-10.0KCRCT-ND" {
		t.Errorf("SKU = %q", record.SKU)
	}
	if record.Availability != "4,521 in stock" {
		t.Errorf("Availability = %q", record.Availability)
	}
	if record.Fields["manufacturer"] != "Yageo" || record.Fields["model"] != "RC0603FR-0710KL" {
		t.Errorf("Fields = %+v", record.Fields)
	}
	if len(record.Images) != 1 || record.Images[0] != "https://media.digikey.com/photos/r.jpg" {
		t.Errorf("Images = %v", record.Images)
	}
}

func TestExtractorUnknownFieldNameGoesToFields(t *testing.T) {
	ext := NewExtractor(
		PatternMatcher(`.*`),
		[]Rule{{Name: "brand", Type: RuleCSS, Selector: ".brand"}},
		nil,
	)
	record, err := ext.Extract([]byte(`<html><body><span class="brand">Acme</span></body></html>`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if record == nil || record.Fields["brand"] != "Acme" {
		t.Fatalf("expected brand in Fields, got %+v", record)
	}
}
