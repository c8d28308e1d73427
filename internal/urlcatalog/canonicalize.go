// Package urlcatalog normalizes URLs to a canonical form, fingerprints
// them, tracks the seen-set, and maintains per-domain stats.
package urlcatalog

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// Canonicalize applies the normalization algorithm of §4.1 and returns the
// canonical form. It is idempotent: Canonicalize(Canonicalize(u)) == Canonicalize(u).
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", &types.InvalidURL{URL: raw, Err: err}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &types.InvalidURL{URL: raw, Err: errInvalidScheme(scheme)}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", &types.InvalidURL{URL: raw, Err: errEmptyHost()}
	}
	host = strings.TrimPrefix(host, "www.")

	port := u.Port()
	hostport := host
	if port != "" {
		hostport = host + ":" + port
	}

	path := collapseSlashes(u.EscapedPath())
	if path == "" {
		path = "/"
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}

	query := sortQuery(u.RawQuery)

	// path is already in escaped form, so it is joined as-is; setting it
	// as url.URL.Path would escape its '%' again on every pass.
	canon := scheme + "://" + hostport + path
	if query != "" {
		canon += "?" + query
	}
	return canon, nil
}

// Fingerprint returns the stable md5 hash of the canonical URL, used as
// the seen-set key.
func Fingerprint(canonicalURL string) string {
	sum := md5.Sum([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

// Host returns the lowercased, www-stripped host of a canonical URL.
func Host(canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Resolve joins href against base (RFC 3986), then canonicalizes the
// result. Returns ("", nil) if the join fails — "none" per spec wording.
func Resolve(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", nil
	}
	resolved := baseURL.ResolveReference(ref)
	canon, err := Canonicalize(resolved.String())
	if err != nil {
		return "", nil
	}
	return canon, nil
}

// IsInternal reports whether href resolves to the same host as base.
func IsInternal(base, href string) bool {
	resolved, err := Resolve(base, href)
	if err != nil || resolved == "" {
		return false
	}
	canonBase, err := Canonicalize(base)
	if err != nil {
		return false
	}
	return Host(resolved) == Host(canonBase)
}

func collapseSlashes(path string) string {
	if path == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sortQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vs := values[k]
		for _, v := range vs {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

type canonError string

func (e canonError) Error() string { return string(e) }

func errInvalidScheme(scheme string) error {
	if scheme == "" {
		return canonError("missing scheme")
	}
	return canonError("unsupported scheme: " + scheme)
}

func errEmptyHost() error { return canonError("empty host") }
