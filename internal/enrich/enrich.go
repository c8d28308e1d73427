// Package enrich runs an ambient middleware chain over a composed Page
// before it reaches Storage: HTML-entity/whitespace normalization and
// PII redaction across the page's text and metadata fields.
package enrich

import (
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// Middleware mutates a Page in place.
type Middleware interface {
	Name() string
	Apply(page *types.Page)
}

// Chain runs an ordered list of Middleware over every Page passed to it.
type Chain struct {
	stages []Middleware
	logger *slog.Logger
}

// New builds the default Chain: text normalization followed by PII
// redaction.
func New(logger *slog.Logger) *Chain {
	return &Chain{
		stages: []Middleware{
			NewTextNormalizeMiddleware(),
			NewPIIRedactMiddleware(logger),
		},
		logger: logger.With("component", "enrich"),
	}
}

// Apply runs every stage over page in order.
func (c *Chain) Apply(page *types.Page) {
	for _, stage := range c.stages {
		stage.Apply(page)
	}
}

// TextNormalizeMiddleware decodes HTML entities and collapses whitespace
// runs across Page.Text and every Metadata value.
type TextNormalizeMiddleware struct{}

func NewTextNormalizeMiddleware() *TextNormalizeMiddleware { return &TextNormalizeMiddleware{} }

func (m *TextNormalizeMiddleware) Name() string { return "text_normalize" }

func (m *TextNormalizeMiddleware) Apply(page *types.Page) {
	page.Text = normalize(page.Text)
	for k, v := range page.Metadata {
		page.Metadata[k] = normalize(v)
	}
}

func normalize(s string) string {
	if s == "" {
		return s
	}
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// PIIRedactMiddleware detects and redacts personally identifiable
// information from Page.Text and Metadata values.
type PIIRedactMiddleware struct {
	patterns map[string]*regexp.Regexp
	logger   *slog.Logger
}

// NewPIIRedactMiddleware builds the redactor with the standard pattern set.
func NewPIIRedactMiddleware(logger *slog.Logger) *PIIRedactMiddleware {
	return &PIIRedactMiddleware{
		patterns: map[string]*regexp.Regexp{
			"email":       regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
			"phone_us":    regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
			"phone_intl":  regexp.MustCompile(`\+\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`),
			"ssn":         regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			"credit_card": regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
			"ip_v4":       regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`),
		},
		logger: logger.With("component", "pii_redact"),
	}
}

func (m *PIIRedactMiddleware) Name() string { return "pii_redact" }

func (m *PIIRedactMiddleware) Apply(page *types.Page) {
	page.Text = m.redact(page.Text)
	for k, v := range page.Metadata {
		page.Metadata[k] = m.redact(v)
	}
}

func (m *PIIRedactMiddleware) redact(s string) string {
	if s == "" {
		return s
	}
	for piiType, re := range m.patterns {
		if re.MatchString(s) {
			s = re.ReplaceAllString(s, "[REDACTED_"+strings.ToUpper(piiType)+"]")
		}
	}
	return s
}
