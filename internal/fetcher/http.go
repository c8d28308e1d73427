package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/crawlmesh/crawlmesh/internal/antiblock"
	"github.com/crawlmesh/crawlmesh/internal/observability"
	"github.com/crawlmesh/crawlmesh/internal/ratelimit"
	"github.com/crawlmesh/crawlmesh/internal/types"
	"github.com/crawlmesh/crawlmesh/internal/urlcatalog"
)

// Config configures an HTTPPipeline.
type Config struct {
	MaxConcurrent   int
	RequestTimeout  time.Duration
	RetryTimes      int
	MaxRequests     int           // rate limiter: requests per window
	RateWindow      time.Duration // rate limiter window, default 60s
	MaxRedirects    int
	MaxBodySize     int64
	UserAgents      []string
	ProxyEnabled    bool
	ProxyURLs       []string
	ProxyRotation   Rotation
	FollowRedirects bool
	TLSInsecure     bool
}

// DefaultConfig matches the option defaults of §6.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:   100,
		RequestTimeout:  30 * time.Second,
		RetryTimes:      3,
		MaxRequests:     100,
		RateWindow:      60 * time.Second,
		MaxRedirects:    5,
		MaxBodySize:     20 * 1024 * 1024,
		FollowRedirects: true,
	}
}

// HTTPPipeline is the concrete Fetch Pipeline of §4.3, implementing
// Pipeline. A single instance serves many concurrent logical fetches.
type HTTPPipeline struct {
	client      *http.Client
	cfg         Config
	sem         chan struct{}
	limiter     *ratelimit.SlidingWindow
	antiblock   *antiblock.Engine
	proxies     *ProxyPool
	logger      *slog.Logger
	userAgents  []string
	uaIndex     atomic.Int64
	metrics     *observability.Metrics
}

// SetMetrics attaches a Metrics instance so every fetch records its
// outcome and latency. Nil-safe: a pipeline with no metrics set simply
// skips instrumentation.
func (p *HTTPPipeline) SetMetrics(m *observability.Metrics) {
	p.metrics = m
}

var fallbackUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// NewHTTPPipeline builds a Fetch Pipeline per cfg.
func NewHTTPPipeline(cfg Config, logger *slog.Logger) (*HTTPPipeline, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.TLSInsecure},
		DisableCompression:  true,
	}

	var pool *ProxyPool
	if cfg.ProxyEnabled && len(cfg.ProxyURLs) > 0 {
		pool = NewProxyPool(cfg.ProxyURLs, cfg.ProxyRotation)
		transport.Proxy = pool.ProxyFunc()
	}

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !cfg.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= maxRedirects {
				return fmt.Errorf("max redirects (%d) reached", maxRedirects)
			}
			return nil
		},
	}

	window := cfg.RateWindow
	if window <= 0 {
		window = 60 * time.Second
	}

	uas := cfg.UserAgents
	if len(uas) == 0 {
		uas = fallbackUserAgents
	}

	return &HTTPPipeline{
		client:     client,
		cfg:        cfg,
		sem:        make(chan struct{}, cfg.MaxConcurrent),
		limiter:    ratelimit.New(cfg.MaxRequests, window),
		antiblock:  antiblock.New(),
		proxies:    pool,
		logger:     logger.With("component", "fetch_pipeline"),
		userAgents: uas,
	}, nil
}

// Fetch implements the full §4.3 structure: admission gate, rate limit,
// anti-block pre-check, header synthesis, proxy selection, retry loop.
func (p *HTTPPipeline) Fetch(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()

	p.limiter.Acquire()

	canon, err := urlcatalog.Canonicalize(rawURL)
	if err != nil {
		return nil, err
	}
	host := urlcatalog.Host(canon)

	if err := p.antiblock.PreCheck(host); err != nil {
		return nil, err
	}

	retryTimes := p.cfg.RetryTimes
	if retryTimes < 1 {
		retryTimes = 1
	}

	var lastErr error
	for attempt := 0; attempt < retryTimes; attempt++ {
		resp, err := p.attempt(ctx, canon, host, headers)
		if err == nil {
			return resp, nil
		}

		var te *types.TransportError
		if errors.As(err, &te) && isRetryableError(te.Err) {
			lastErr = err
			if attempt == retryTimes-1 {
				return nil, err
			}
			time.Sleep(time.Duration(1<<uint(attempt)) * time.Second)
			continue
		}
		// Non-retryable transport error, or Blocked/RateLimited/HTTPError:
		// no further attempts at this URL in this call.
		return nil, err
	}
	return nil, lastErr
}

func (p *HTTPPipeline) attempt(ctx context.Context, canonURL, host string, callerHeaders map[string]string) (resp *Response, ferr error) {
	if p.metrics != nil {
		p.metrics.RequestsInProgress.WithLabelValues(host).Inc()
		defer p.metrics.RequestsInProgress.WithLabelValues(host).Dec()
	}
	attemptStart := time.Now()
	defer func() {
		if p.metrics == nil {
			return
		}
		status := "error"
		if resp != nil {
			status = fmt.Sprintf("%d", resp.StatusCode)
		}
		p.metrics.RequestsTotal.WithLabelValues(http.MethodGet, status, host).Inc()
		p.metrics.RequestDuration.WithLabelValues(host).Observe(time.Since(attemptStart).Seconds())
	}()

	var proxyEntry *types.ProxyEntry
	if p.proxies != nil {
		proxyEntry = p.proxies.Next()
		if proxyEntry != nil {
			if proxyURL, err := url.Parse(proxyEntry.URL); err == nil {
				ctx = withProxyURL(ctx, proxyURL)
			}
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, canonURL, nil)
	if err != nil {
		return nil, &types.TransportError{URL: canonURL, Err: err}
	}

	p.synthesizeHeaders(httpReq, callerHeaders)

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		if proxyEntry != nil {
			p.proxies.MarkFailed(proxyEntry.URL)
		}
		return nil, &types.TransportError{URL: canonURL, Err: err}
	}
	defer httpResp.Body.Close()
	if proxyEntry != nil {
		p.proxies.MarkHealthy(proxyEntry.URL)
	}

	bodyPreview, _ := io.ReadAll(io.LimitReader(httpResp.Body, 8192))
	fullBody := bodyPreview
	if int64(len(bodyPreview)) == 8192 {
		rest, _ := io.ReadAll(io.LimitReader(httpResp.Body, p.maxBodySize()))
		fullBody = append(fullBody, rest...)
	}

	if err := p.antiblock.PostCheck(host, httpResp.StatusCode, httpResp.Header.Get("Server"), fullBody); err != nil {
		return nil, err
	}

	reader, err := decompressReader(httpResp, &byteReader{data: fullBody})
	if err != nil {
		return nil, &types.HTTPError{URL: canonURL, StatusCode: httpResp.StatusCode}
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.TransportError{URL: canonURL, Err: err}
	}

	respHeaders := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		respHeaders[k] = httpResp.Header.Get(k)
	}

	return &Response{
		URL:        canonURL,
		FinalURL:   httpResp.Request.URL.String(),
		Body:       decoded,
		StatusCode: httpResp.StatusCode,
		Headers:    respHeaders,
		Encoding:   httpResp.Header.Get("Content-Encoding"),
		Duration:   duration,
	}, nil
}

func (p *HTTPPipeline) maxBodySize() int64 {
	if p.cfg.MaxBodySize > 0 {
		return p.cfg.MaxBodySize
	}
	return 20 * 1024 * 1024
}

func (p *HTTPPipeline) synthesizeHeaders(req *http.Request, callerHeaders map[string]string) {
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("User-Agent", p.nextUserAgent())

	for k, v := range callerHeaders {
		req.Header.Set(k, v)
	}
}

func (p *HTTPPipeline) nextUserAgent() string {
	if len(p.userAgents) == 0 {
		return fallbackUserAgents[0]
	}
	idx := p.uaIndex.Add(1) % int64(len(p.userAgents))
	return p.userAgents[idx]
}

// Close releases idle connections.
func (p *HTTPPipeline) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError distinguishes genuine transport failures (DNS,
// connect, read, reset, timeout) from context cancellation, which the
// retry loop must never retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
