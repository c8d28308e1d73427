package sites

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// evalCSS applies a single CSS rule against a parsed document and
// returns every matched value.
func evalCSS(doc *goquery.Document, rule Rule) []string {
	var values []string

	doc.Find(rule.Selector).Each(func(_ int, sel *goquery.Selection) {
		var val string
		switch rule.Attribute {
		case "", "text":
			val = strings.TrimSpace(sel.Text())
		case "html", "innerHTML":
			val, _ = sel.Html()
		case "outerHTML":
			val, _ = goquery.OuterHtml(sel)
		default:
			val, _ = sel.Attr(rule.Attribute)
		}
		if val != "" {
			values = append(values, val)
		}
	})

	return values
}
