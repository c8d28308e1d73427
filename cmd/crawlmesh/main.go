package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crawlmesh/crawlmesh/internal/bloom"
	"github.com/crawlmesh/crawlmesh/internal/broker"
	"github.com/crawlmesh/crawlmesh/internal/config"
	"github.com/crawlmesh/crawlmesh/internal/enrich"
	"github.com/crawlmesh/crawlmesh/internal/extractor"
	"github.com/crawlmesh/crawlmesh/internal/extractor/sites"
	"github.com/crawlmesh/crawlmesh/internal/fetcher"
	"github.com/crawlmesh/crawlmesh/internal/master"
	"github.com/crawlmesh/crawlmesh/internal/observability"
	"github.com/crawlmesh/crawlmesh/internal/storage"
	"github.com/crawlmesh/crawlmesh/internal/urlcatalog"
	"github.com/crawlmesh/crawlmesh/internal/worker"
)

var (
	cfgFile  string
	logLevel string
	logFile  string

	seedURLs   []string
	workerCount int
	benchURLs  []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crawlmesh",
		Short: "crawlmesh — distributed web crawler coordination core",
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "override logging.file")

	rootCmd.AddCommand(masterCmd(), workerCmd(), standaloneCmd(), benchmarkCmd(), statsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func masterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master",
		Short: "run the Master Loop: seed injection and result aggregation",
		RunE:  runMaster,
	}
	cmd.Flags().StringSliceVar(&seedURLs, "seed-urls", nil, "comma-separated seed URLs to inject")
	return cmd
}

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "run one or more Worker Loops against a shared Broker",
		RunE:  runWorker,
	}
	cmd.Flags().IntVar(&workerCount, "workers", 1, "number of worker goroutines to launch")
	return cmd
}

func standaloneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "standalone",
		Short: "run Master and Worker in a single process over an in-memory Broker",
		RunE:  runStandalone,
	}
	cmd.Flags().StringSliceVar(&seedURLs, "seed-urls", nil, "comma-separated seed URLs to inject")
	cmd.Flags().IntVar(&workerCount, "workers", 4, "number of worker goroutines to launch")
	return cmd
}

func benchmarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "fetch a fixed URL set through the pipeline and report timing",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringSliceVar(&benchURLs, "urls", nil, "comma-separated URLs to benchmark")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "print the resolved configuration",
		RunE:  runStats,
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.Logging.File != "" {
		if f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = f
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func buildBroker(cfg *config.Config) (broker.Broker, error) {
	switch cfg.Broker.Type {
	case "redis":
		return broker.NewRedisBroker(broker.RedisOptions{
			Host:     cfg.Broker.Host,
			Port:     cfg.Broker.Port,
			DB:       cfg.Broker.DB,
			Password: cfg.Broker.Password,
		}), nil
	default:
		return broker.NewMemoryBroker(), nil
	}
}

func buildSeenSet(cfg *config.Config, b broker.Broker) bloom.SeenSet {
	switch cfg.Bloom.Backend {
	case "memory":
		return bloom.NewMemorySeenSet(cfg.Bloom.Capacity, cfg.Bloom.ErrorRate)
	case "broker":
		return &bloom.CtxSeenSet{F: bloom.NewBrokerFilter(b, "crawlmesh:seen", cfg.Bloom.Capacity, cfg.Bloom.ErrorRate)}
	default:
		return bloom.NewScalableSeenSet(cfg.Bloom.Capacity, cfg.Bloom.ErrorRate, uint64(cfg.Bloom.ScaleFactor))
	}
}

func buildStorage(cfg *config.Config, logger *slog.Logger) storage.Storage {
	switch cfg.Storage.Type {
	case "document-store", "mongodb":
		return storage.NewMongoStorage(cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
	default:
		return storage.NewFileStorage(cfg.Storage.FilePath, logger)
	}
}

// buildSiteRegistry registers the pluggable, URL-pattern-selected site
// extractors of §4.4 consulted alongside the generic extractor.
func buildSiteRegistry() *sites.Registry {
	reg := sites.NewRegistry()
	reg.Register(sites.NewDigiKeyExtractor())
	return reg
}

func buildPipeline(cfg *config.Config, logger *slog.Logger) (fetcher.Pipeline, error) {
	fc := fetcher.Config{
		MaxConcurrent:   cfg.Fetcher.MaxConcurrent,
		RequestTimeout:  cfg.Fetcher.RequestTimeout,
		RetryTimes:      cfg.Fetcher.RetryTimes,
		MaxRequests:     cfg.Fetcher.MaxRequests,
		RateWindow:      cfg.Fetcher.RateWindow,
		MaxRedirects:    cfg.Fetcher.MaxRedirects,
		MaxBodySize:     cfg.Fetcher.MaxBodySize,
		ProxyEnabled:    cfg.Fetcher.ProxyEnabled,
		ProxyURLs:       cfg.Fetcher.ProxyURLs,
		ProxyRotation:   fetcher.Rotation(cfg.Fetcher.ProxyRotation),
		FollowRedirects: cfg.Fetcher.FollowRedirects,
		TLSInsecure:     cfg.Fetcher.TLSInsecure,
	}
	return fetcher.NewHTTPPipeline(fc, logger)
}

func buildWorkers(ctx context.Context, cfg *config.Config, b broker.Broker, logger *slog.Logger, count int, metrics *observability.Metrics) ([]*worker.Worker, fetcher.Pipeline, error) {
	var robots *urlcatalog.RobotsGuard
	if cfg.Fetcher.RespectRobotsTxt {
		robots = urlcatalog.NewRobotsGuard()
	}
	catalog := urlcatalog.New(buildSeenSet(cfg, b), robots)

	pipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build fetch pipeline: %w", err)
	}
	if hp, ok := pipeline.(*fetcher.HTTPPipeline); ok && metrics != nil {
		hp.SetMetrics(metrics)
	}

	ext := extractor.New(logger, buildSiteRegistry())
	store := buildStorage(cfg, logger)
	if err := store.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect storage: %w", err)
	}
	enricher := enrich.New(logger)

	workers := make([]*worker.Worker, count)
	for i := 0; i < count; i++ {
		id := cfg.Worker.ID
		if id == "" {
			id = fmt.Sprintf("worker-%d", i)
		} else if count > 1 {
			id = fmt.Sprintf("%s-%d", id, i)
		}
		workers[i] = worker.New(id, b, catalog, pipeline, ext, store, enricher, logger)
		if metrics != nil {
			workers[i].SetMetrics(metrics)
		}
	}
	if metrics != nil {
		metrics.WorkersTotal.Set(float64(count))
	}
	return workers, pipeline, nil
}

func waitForSignal(cancel context.CancelFunc, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()
}

func runMaster(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	b, err := buildBroker(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	waitForSignal(cancel, logger)

	m := master.New(b, logger)
	if len(seedURLs) > 0 {
		if err := m.Seed(ctx, seedURLs); err != nil {
			return fmt.Errorf("seed injection: %w", err)
		}
	}

	if cfg.Metrics.Enabled {
		metrics := observability.New(logger)
		go metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path)
		go pollQueueSize(ctx, b, metrics)
	}

	m.Start(ctx)
	<-ctx.Done()
	m.Stop()
	m.Wait()

	logger.Info("master stopped", "stats", m.Stats().Snapshot())
	return nil
}

// pollQueueSize keeps the queue_size gauge current until ctx is
// cancelled; the broker interface exposes no push notification for
// depth changes, so polling is the only option.
func pollQueueSize(ctx context.Context, b broker.Broker, metrics *observability.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := b.QueueSize(ctx); err == nil {
				metrics.QueueSize.Set(float64(n))
			}
		}
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	b, err := buildBroker(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	waitForSignal(cancel, logger)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.New(logger)
		go metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path)
	}

	workers, pipeline, err := buildWorkers(ctx, cfg, b, logger, workerCount, metrics)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	wg.Wait()
	return nil
}

func runStandalone(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	cfg.Broker.Type = "memory"
	b, err := buildBroker(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	waitForSignal(cancel, logger)

	m := master.New(b, logger)
	if len(seedURLs) > 0 {
		if err := m.Seed(ctx, seedURLs); err != nil {
			return fmt.Errorf("seed injection: %w", err)
		}
	}
	m.Start(ctx)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.New(logger)
		go metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path)
		go pollQueueSize(ctx, b, metrics)
	}

	workers, pipeline, err := buildWorkers(ctx, cfg, b, logger, workerCount, metrics)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}

	<-ctx.Done()
	wg.Wait()
	m.Stop()
	m.Wait()

	logger.Info("standalone run complete", "stats", m.Stats().Snapshot())
	return nil
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if len(benchURLs) == 0 {
		return fmt.Errorf("benchmark requires at least one --urls value")
	}

	pipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	ctx := context.Background()
	start := time.Now()
	var ok, failed int
	for _, u := range benchURLs {
		fetchStart := time.Now()
		resp, err := pipeline.Fetch(ctx, u, nil)
		if err != nil {
			failed++
			logger.Warn("benchmark fetch failed", "url", u, "error", err)
			continue
		}
		ok++
		logger.Info("benchmark fetch", "url", u, "status", resp.StatusCode, "duration", time.Since(fetchStart))
	}

	logger.Info("benchmark complete", "total", len(benchURLs), "ok", ok, "failed", failed, "elapsed", time.Since(start))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	fmt.Printf("Fetcher:\n")
	fmt.Printf("  MaxConcurrent:      %d\n", cfg.Fetcher.MaxConcurrent)
	fmt.Printf("  RequestTimeout:     %s\n", cfg.Fetcher.RequestTimeout)
	fmt.Printf("  RetryTimes:         %d\n", cfg.Fetcher.RetryTimes)
	fmt.Printf("  RespectRobotsTxt:   %v\n", cfg.Fetcher.RespectRobotsTxt)
	fmt.Printf("  ProxyEnabled:       %v\n", cfg.Fetcher.ProxyEnabled)
	fmt.Printf("\nBloom:\n")
	fmt.Printf("  Backend:            %s\n", cfg.Bloom.Backend)
	fmt.Printf("  Capacity:           %d\n", cfg.Bloom.Capacity)
	fmt.Printf("  ErrorRate:          %f\n", cfg.Bloom.ErrorRate)
	fmt.Printf("\nBroker:\n")
	fmt.Printf("  Type:               %s\n", cfg.Broker.Type)
	fmt.Printf("\nStorage:\n")
	fmt.Printf("  Type:               %s\n", cfg.Storage.Type)
	fmt.Printf("\nMetrics:\n")
	fmt.Printf("  Enabled:            %v\n", cfg.Metrics.Enabled)
	fmt.Printf("  Addr:               %s\n", cfg.Metrics.Addr)
	return nil
}
