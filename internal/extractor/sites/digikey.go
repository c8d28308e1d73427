package sites

// NewDigiKeyExtractor builds the site Extractor for DigiKey-style product
// pages: product name, model, manufacturer, and part number live in
// fixed class selectors, stock status carries the available quantity as
// free text, and product photos sit in an image gallery.
//
// Field selectors mirror a DigiKey product-detail page layout: name and
// part number identify the part, manufacturer and model are descriptive
// metadata, and stock/images round out a ProductRecord.
func NewDigiKeyExtractor() *Extractor {
	return NewExtractor(
		PatternMatcher(`/product-detail/`),
		[]Rule{
			{Name: "name", Type: RuleCSS, Selector: ".product-name"},
			{Name: "manufacturer", Type: RuleCSS, Selector: ".manufacturer"},
			{Name: "model", Type: RuleCSS, Selector: ".product-details h2"},
			{Name: "product_number", Type: RuleCSS, Selector: ".product-number"},
			{Name: "stock", Type: RuleCSS, Selector: ".stock-status"},
			{Name: "image", Type: RuleCSS, Selector: ".product-images img", Attribute: "src"},
		},
		map[string]string{
			"name":           "name",
			"product_number": "sku",
			"stock":          "availability",
			"image":          "image",
		},
	)
}
