package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults. CLI
// flag overrides are not read here; callers apply them to the result.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)
	bindEnv(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("crawlmesh")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".crawlmesh"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env/flag overrides
// compose correctly with the struct defaults.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("fetcher.max_concurrent", cfg.Fetcher.MaxConcurrent)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.retry_times", cfg.Fetcher.RetryTimes)
	v.SetDefault("fetcher.max_requests", cfg.Fetcher.MaxRequests)
	v.SetDefault("fetcher.rate_window", cfg.Fetcher.RateWindow)
	v.SetDefault("fetcher.delay_range_min", cfg.Fetcher.DelayRangeMin)
	v.SetDefault("fetcher.delay_range_max", cfg.Fetcher.DelayRangeMax)
	v.SetDefault("fetcher.user_agent_rotation", cfg.Fetcher.UserAgentRotation)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.respect_robots_txt", cfg.Fetcher.RespectRobotsTxt)
	v.SetDefault("fetcher.proxy_enabled", cfg.Fetcher.ProxyEnabled)
	v.SetDefault("fetcher.proxy_rotation", cfg.Fetcher.ProxyRotation)
	v.SetDefault("fetcher.proxy_rotation_interval", cfg.Fetcher.ProxyRotationEvery)

	v.SetDefault("bloom.capacity", cfg.Bloom.Capacity)
	v.SetDefault("bloom.error_rate", cfg.Bloom.ErrorRate)
	v.SetDefault("bloom.scale_factor", cfg.Bloom.ScaleFactor)
	v.SetDefault("bloom.backend", cfg.Bloom.Backend)
	v.SetDefault("bloom.cache_ttl", cfg.Bloom.CacheTTL)

	v.SetDefault("broker.type", cfg.Broker.Type)
	v.SetDefault("broker.host", cfg.Broker.Host)
	v.SetDefault("broker.port", cfg.Broker.Port)
	v.SetDefault("broker.db", cfg.Broker.DB)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.file_path", cfg.Storage.FilePath)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("logging.level", cfg.Logging.Level)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("worker.master_host", cfg.Worker.MasterHost)
	v.SetDefault("worker.master_port", cfg.Worker.MasterPort)
}

// bindEnv wires the exact environment variable names of §6 onto their
// config keys; AutomaticEnv's dotted-key replacement would not otherwise
// match these historical, non-namespaced names.
func bindEnv(v *viper.Viper) {
	binding := map[string]string{
		"broker.host":             "REDIS_HOST",
		"broker.port":             "REDIS_PORT",
		"broker.db":               "REDIS_DB",
		"broker.password":         "REDIS_PASSWORD",
		"storage.type":            "STORAGE_TYPE",
		"storage.file_path":       "FILE_PATH",
		"logging.level":           "LOG_LEVEL",
		"logging.file":            "LOG_FILE",
		"worker.id":               "WORKER_ID",
		"worker.master_host":      "MASTER_HOST",
		"worker.master_port":      "MASTER_PORT",
	}
	for key, env := range binding {
		_ = v.BindEnv(key, env)
	}
}
