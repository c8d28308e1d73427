package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for crawlmesh.
type Config struct {
	Fetcher Fetcher `mapstructure:"fetcher" yaml:"fetcher"`
	Bloom   Bloom   `mapstructure:"bloom"   yaml:"bloom"`
	Broker  Broker  `mapstructure:"broker"  yaml:"broker"`
	Storage Storage `mapstructure:"storage" yaml:"storage"`
	Logging Logging `mapstructure:"logging" yaml:"logging"`
	Metrics Metrics `mapstructure:"metrics" yaml:"metrics"`
	Worker  Worker  `mapstructure:"worker"  yaml:"worker"`
}

// Fetcher controls the Fetch Pipeline (§4.3).
type Fetcher struct {
	MaxConcurrent      int           `mapstructure:"max_concurrent"        yaml:"max_concurrent"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"       yaml:"request_timeout"`
	RetryTimes         int           `mapstructure:"retry_times"           yaml:"retry_times"`
	MaxRequests        int           `mapstructure:"max_requests"          yaml:"max_requests"`
	RateWindow         time.Duration `mapstructure:"rate_window"           yaml:"rate_window"`
	DelayRangeMin      time.Duration `mapstructure:"delay_range_min"       yaml:"delay_range_min"`
	DelayRangeMax      time.Duration `mapstructure:"delay_range_max"       yaml:"delay_range_max"`
	UserAgentRotation  bool          `mapstructure:"user_agent_rotation"   yaml:"user_agent_rotation"`
	MaxRedirects       int           `mapstructure:"max_redirects"         yaml:"max_redirects"`
	MaxBodySize        int64         `mapstructure:"max_body_size"         yaml:"max_body_size"`
	FollowRedirects    bool          `mapstructure:"follow_redirects"      yaml:"follow_redirects"`
	TLSInsecure        bool          `mapstructure:"tls_insecure"          yaml:"tls_insecure"`
	RespectRobotsTxt   bool          `mapstructure:"respect_robots_txt"    yaml:"respect_robots_txt"`
	ProxyEnabled       bool          `mapstructure:"proxy_enabled"         yaml:"proxy_enabled"`
	ProxyURLs          []string      `mapstructure:"proxy_urls"            yaml:"proxy_urls"`
	ProxyRotation      string        `mapstructure:"proxy_rotation"        yaml:"proxy_rotation"`
	ProxyRotationEvery time.Duration `mapstructure:"proxy_rotation_interval" yaml:"proxy_rotation_interval"`
}

// Bloom controls the scalable Bloom filter seen-set (§4.6).
type Bloom struct {
	Capacity    uint64  `mapstructure:"capacity"     yaml:"capacity"`
	ErrorRate   float64 `mapstructure:"error_rate"   yaml:"error_rate"`
	ScaleFactor float64 `mapstructure:"scale_factor" yaml:"scale_factor"`
	Backend     string  `mapstructure:"backend"      yaml:"backend"` // "memory", "scalable", "broker"
	CacheTTL    time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Broker controls the external collaborator contract (§4.2).
type Broker struct {
	Type     string `mapstructure:"type"     yaml:"type"` // "memory", "redis"
	Host     string `mapstructure:"host"     yaml:"host"`
	Port     int    `mapstructure:"port"     yaml:"port"`
	DB       int    `mapstructure:"db"       yaml:"db"`
	Password string `mapstructure:"password" yaml:"password"`
}

// Storage controls the Storage Sink (§4.7).
type Storage struct {
	Type             string `mapstructure:"type"              yaml:"type"` // "file", "document-store" (mongodb)
	FilePath         string `mapstructure:"file_path"          yaml:"file_path"`
	MongoURI         string `mapstructure:"mongo_uri"          yaml:"mongo_uri"`
	MongoDatabase    string `mapstructure:"mongo_database"     yaml:"mongo_database"`
	MongoCollection  string `mapstructure:"mongo_collection"   yaml:"mongo_collection"`
}

// Logging controls the slog handler.
type Logging struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file"  yaml:"file"`
}

// Metrics controls the Prometheus exposition server.
type Metrics struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr"    yaml:"addr"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// Worker controls worker identity and the master-facing endpoint.
type Worker struct {
	ID         string `mapstructure:"id"          yaml:"id"`
	MasterHost string `mapstructure:"master_host" yaml:"master_host"`
	MasterPort int    `mapstructure:"master_port" yaml:"master_port"`
}

// DefaultConfig returns a Config carrying the §6 option defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetcher: Fetcher{
			MaxConcurrent:      100,
			RequestTimeout:     30 * time.Second,
			RetryTimes:         3,
			MaxRequests:        100,
			RateWindow:         60 * time.Second,
			DelayRangeMin:      500 * time.Millisecond,
			DelayRangeMax:      1500 * time.Millisecond,
			UserAgentRotation:  true,
			MaxRedirects:       5,
			MaxBodySize:        20 * 1024 * 1024,
			FollowRedirects:    true,
			RespectRobotsTxt:   true,
			ProxyEnabled:       false,
			ProxyRotation:      "round_robin",
			ProxyRotationEvery: 300 * time.Second,
		},
		Bloom: Bloom{
			Capacity:    1_000_000,
			ErrorRate:   0.01,
			ScaleFactor: 2,
			Backend:     "scalable",
			CacheTTL:    3600 * time.Second,
		},
		Broker: Broker{
			Type: "memory",
			Host: "localhost",
			Port: 6379,
		},
		Storage: Storage{
			Type:            "file",
			FilePath:        "./output",
			MongoDatabase:   "crawlmesh",
			MongoCollection: "pages",
		},
		Logging: Logging{
			Level: "info",
		},
		Metrics: Metrics{
			Enabled: false,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Worker: Worker{
			MasterHost: "localhost",
			MasterPort: 7000,
		},
	}
}
