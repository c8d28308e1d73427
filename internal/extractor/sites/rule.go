// Package sites implements the pluggable, URL-pattern-selected site
// extractors of §4.4: a rule-based CSS/XPath/regex engine plus a
// registry that maps a URL to the first matching site Extractor. The
// core only ever sees the resulting ProductRecord through Page.Extra —
// it never inspects rule internals.
package sites

// RuleType selects which selector engine evaluates a Rule.
type RuleType string

const (
	RuleCSS   RuleType = "css"
	RuleXPath RuleType = "xpath"
	RuleRegex RuleType = "regex"
)

// Rule is one field-extraction instruction for a site plugin.
type Rule struct {
	Name      string
	Type      RuleType
	Selector  string
	Attribute string // "", "text", "html", "outerHTML", or an attribute name
}
