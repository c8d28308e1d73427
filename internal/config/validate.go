package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Fetcher.MaxConcurrent < 1 {
		return fmt.Errorf("fetcher.max_concurrent must be >= 1, got %d", cfg.Fetcher.MaxConcurrent)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.RetryTimes < 0 {
		return fmt.Errorf("fetcher.retry_times must be >= 0, got %d", cfg.Fetcher.RetryTimes)
	}
	if cfg.Fetcher.MaxRequests < 1 {
		return fmt.Errorf("fetcher.max_requests must be >= 1, got %d", cfg.Fetcher.MaxRequests)
	}
	if cfg.Fetcher.RateWindow <= 0 {
		return fmt.Errorf("fetcher.rate_window must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Fetcher.ProxyEnabled {
		if cfg.Fetcher.ProxyRotation != "round_robin" && cfg.Fetcher.ProxyRotation != "random" {
			return fmt.Errorf("fetcher.proxy_rotation must be 'round_robin' or 'random', got %q", cfg.Fetcher.ProxyRotation)
		}
		for _, proxyURL := range cfg.Fetcher.ProxyURLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if cfg.Bloom.Capacity == 0 {
		return fmt.Errorf("bloom.capacity must be > 0")
	}
	if cfg.Bloom.ErrorRate <= 0 || cfg.Bloom.ErrorRate >= 1 {
		return fmt.Errorf("bloom.error_rate must be in (0,1), got %f", cfg.Bloom.ErrorRate)
	}
	validBloomBackends := map[string]bool{"memory": true, "scalable": true, "broker": true}
	if !validBloomBackends[cfg.Bloom.Backend] {
		return fmt.Errorf("bloom.backend %q is not supported (valid: memory, scalable, broker)", cfg.Bloom.Backend)
	}

	validBrokerTypes := map[string]bool{"memory": true, "redis": true}
	if !validBrokerTypes[cfg.Broker.Type] {
		return fmt.Errorf("broker.type %q is not supported (valid: memory, redis)", cfg.Broker.Type)
	}

	validStorageTypes := map[string]bool{"file": true, "document-store": true, "mongodb": true}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: file, document-store)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "file" && cfg.Storage.FilePath == "" {
		return fmt.Errorf("storage.file_path is required when storage.type is 'file'")
	}
	if (cfg.Storage.Type == "document-store" || cfg.Storage.Type == "mongodb") && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required when storage.type is 'document-store'")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics.enabled is true")
	}

	return nil
}

// ValidateURL checks if a URL string is valid as a seed for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
