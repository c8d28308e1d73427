package sites

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ProductRecord is a typed artifact a site plugin may emit alongside the
// generic ParsedPage fields. The core treats it as opaque payload riding
// through Page.Extra.
type ProductRecord struct {
	Name         string            `json:"name,omitempty"`
	Price        string            `json:"price,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	SKU          string            `json:"sku,omitempty"`
	Availability string            `json:"availability,omitempty"`
	Images       []string          `json:"images,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
}

// Matcher selects whether a site Extractor applies to a URL.
type Matcher func(url string) bool

// PatternMatcher builds a Matcher from a regular expression.
func PatternMatcher(pattern string) Matcher {
	re := regexp.MustCompile(pattern)
	return func(url string) bool { return re.MatchString(url) }
}

// Extractor is a rule-based site plugin: a set of field rules plus a map
// from rule name to ProductRecord field.
type Extractor struct {
	Match     Matcher
	Rules     []Rule
	fieldMap  map[string]string // rule name -> ProductRecord field ("name","price","currency","sku","availability","image")
	regexes   *regexCache
}

// NewExtractor builds a site Extractor. fieldMap routes well-known rule
// names onto ProductRecord's typed fields; anything else lands in Fields.
func NewExtractor(match Matcher, rules []Rule, fieldMap map[string]string) *Extractor {
	return &Extractor{Match: match, Rules: rules, fieldMap: fieldMap, regexes: newRegexCache()}
}

// Extract runs every rule against body and composes a ProductRecord. CSS/XPath rules see a parsed document; regex rules see
// the raw body.
func (e *Extractor) Extract(body []byte) (*ProductRecord, error) {
	record := &ProductRecord{Fields: make(map[string]string)}

	var doc *goquery.Document
	var htmlDoc *html.Node
	needsCSS, needsXPath := false, false
	for _, r := range e.Rules {
		switch r.Type {
		case RuleCSS:
			needsCSS = true
		case RuleXPath:
			needsXPath = true
		}
	}
	if needsCSS {
		d, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
		if err == nil {
			doc = d
		}
	}
	if needsXPath {
		d, err := html.Parse(strings.NewReader(string(body)))
		if err == nil {
			htmlDoc = d
		}
	}

	for _, rule := range e.Rules {
		var values []string
		switch rule.Type {
		case RuleCSS:
			if doc != nil {
				values = evalCSS(doc, rule)
			}
		case RuleXPath:
			if htmlDoc != nil {
				values = evalXPath(htmlDoc, rule)
			}
		case RuleRegex:
			re, err := e.regexes.compile(rule.Selector)
			if err == nil {
				values = evalRegex(re, string(body))
			}
		}
		if len(values) == 0 {
			continue
		}
		e.assign(record, rule.Name, values)
	}

	if isEmpty(record) {
		return nil, nil
	}
	return record, nil
}

func (e *Extractor) assign(record *ProductRecord, ruleName string, values []string) {
	field, mapped := e.fieldMap[ruleName]
	if !mapped {
		field = ruleName
	}
	switch field {
	case "name":
		record.Name = values[0]
	case "price":
		record.Price = values[0]
	case "currency":
		record.Currency = values[0]
	case "sku":
		record.SKU = values[0]
	case "availability":
		record.Availability = values[0]
	case "image", "images":
		record.Images = append(record.Images, values...)
	default:
		record.Fields[ruleName] = values[0]
	}
}

func isEmpty(r *ProductRecord) bool {
	return r.Name == "" && r.Price == "" && r.SKU == "" && r.Availability == "" &&
		len(r.Images) == 0 && len(r.Fields) == 0
}

// Registry maps a URL to the first matching site Extractor.
type Registry struct {
	extractors []*Extractor
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a site Extractor to the registry.
func (r *Registry) Register(e *Extractor) {
	r.extractors = append(r.extractors, e)
}

// For returns the first registered Extractor whose Matcher accepts url,
// or nil if none match — the generic extractor then applies alone.
func (r *Registry) For(url string) *Extractor {
	for _, e := range r.extractors {
		if e.Match(url) {
			return e
		}
	}
	return nil
}
