package types

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// StructuredData holds the structured-data families the extractor pulls
// from a page: JSON-LD, OpenGraph, Twitter Card, and Microdata.
type StructuredData struct {
	JSONLD    []map[string]any  `json:"json_ld,omitempty"`
	OpenGraph map[string]string `json:"open_graph,omitempty"`
	Twitter   map[string]string `json:"twitter,omitempty"`
	Microdata []map[string]any `json:"microdata,omitempty"`
}

// ParsedPage is the extractor's output for one fetched body.
type ParsedPage struct {
	Metadata       map[string]string `json:"metadata"`
	StructuredData StructuredData    `json:"structured_data"`
	Text           string            `json:"text"`
	LinksInternal  []string          `json:"links_internal"`
	LinksExternal  []string          `json:"links_external"`
	// Extra carries typed artifacts emitted by a pluggable site extractor
	// (e.g. a product record); the core never inspects it.
	Extra map[string]any `json:"extra,omitempty"`
}

// Page is the persisted fetch artifact for one successful HTTP response.
type Page struct {
	URL            string            `json:"url"`
	Domain         string            `json:"domain"`
	StatusCode     int               `json:"status_code"`
	Body           []byte            `json:"-"`
	ContentType    string            `json:"content_type"`
	Encoding       string            `json:"encoding"`
	Headers        map[string]string `json:"headers"`
	FetchedAt      time.Time         `json:"fetched_at"`
	Metadata       map[string]string `json:"metadata"`
	StructuredData StructuredData    `json:"structured_data"`
	LinksInternal  []string          `json:"links_internal"`
	LinksExternal  []string          `json:"links_external"`
	Text           string            `json:"text"`
	WorkerID       string            `json:"worker_id"`
	DownloadTime   time.Duration     `json:"download_time"`
	ContentHash    string            `json:"content_hash"`
	ContentSize    int               `json:"content_size"`
	Extra          map[string]any    `json:"extra,omitempty"`
}

// ContentMD5 computes the md5 content hash invariant (content_hash == md5(body)).
func ContentMD5(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// NewPage composes a Page from a fetch response and extractor output,
// enforcing the domain/content_size/content_hash invariants from §3.
func NewPage(url, domain string, status int, body []byte, contentType, encoding string,
	headers map[string]string, fetchedAt time.Time, parsed *ParsedPage, workerID string, downloadTime time.Duration) *Page {
	p := &Page{
		URL:          url,
		Domain:       domain,
		StatusCode:   status,
		Body:         body,
		ContentType:  contentType,
		Encoding:     encoding,
		Headers:      headers,
		FetchedAt:    fetchedAt,
		WorkerID:     workerID,
		DownloadTime: downloadTime,
		ContentHash:  ContentMD5(body),
		ContentSize:  len(body),
	}
	if parsed != nil {
		p.Metadata = parsed.Metadata
		p.StructuredData = parsed.StructuredData
		p.LinksInternal = parsed.LinksInternal
		p.LinksExternal = parsed.LinksExternal
		p.Text = parsed.Text
		p.Extra = parsed.Extra
	}
	return p
}
