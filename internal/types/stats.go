package types

import "time"

// DomainStats holds per-host rolling counters, updated by the URL
// Catalog. Neither the rate limiter nor the anti-block engine reads them.
type DomainStats struct {
	Domain        string    `json:"domain"`
	TotalRequests int64     `json:"total_requests"`
	Successful    int64     `json:"successful"`
	Failed        int64     `json:"failed"`
	TotalBytes    int64     `json:"total_bytes"`
	AvgRTT        float64   `json:"avg_rtt_seconds"`
	LastRequest   time.Time `json:"last_request"`
}

// Update folds one request outcome into the rolling stats, computing an
// incremental mean of round-trip time.
func (d *DomainStats) Update(success bool, rtt time.Duration, bytes int) {
	d.TotalRequests++
	if success {
		d.Successful++
	} else {
		d.Failed++
	}
	d.TotalBytes += int64(bytes)
	n := float64(d.TotalRequests)
	d.AvgRTT += (rtt.Seconds() - d.AvgRTT) / n
	d.LastRequest = time.Now()
}

// ProxyEntry is a single proxy in the pool, tracked with health and
// rolling stats per §3.
type ProxyEntry struct {
	URL           string    `json:"url"`
	Healthy       bool      `json:"healthy"`
	CooldownUntil time.Time `json:"cooldown_until"`
	Requests      int64     `json:"requests"`
	Successes     int64     `json:"successes"`
	Failures      int64     `json:"failures"`
}
