// Command fdcrawler runs one incremental crawl of the source site: it walks
// the pending date range, resolves headlines to municipalities, and syncs the
// resulting articles into the remote table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/villefeed/faits-divers-crawler/internal/api"
	"github.com/villefeed/faits-divers-crawler/internal/archive"
	gcsarchive "github.com/villefeed/faits-divers-crawler/internal/archive/gcs"
	localarchive "github.com/villefeed/faits-divers-crawler/internal/archive/local"
	memoryarchive "github.com/villefeed/faits-divers-crawler/internal/archive/memory"
	"github.com/villefeed/faits-divers-crawler/internal/clock/system"
	"github.com/villefeed/faits-divers-crawler/internal/config"
	"github.com/villefeed/faits-divers-crawler/internal/crawl"
	"github.com/villefeed/faits-divers-crawler/internal/gazetteer"
	"github.com/villefeed/faits-divers-crawler/internal/harvester"
	"github.com/villefeed/faits-divers-crawler/internal/logging"
	"github.com/villefeed/faits-divers-crawler/internal/progress"
	"github.com/villefeed/faits-divers-crawler/internal/progress/sinks"
	"github.com/villefeed/faits-divers-crawler/internal/publisher"
	memorypublisher "github.com/villefeed/faits-divers-crawler/internal/publisher/memory"
	gcppublisher "github.com/villefeed/faits-divers-crawler/internal/publisher/pubsub"
	"github.com/villefeed/faits-divers-crawler/internal/resolver"
	"github.com/villefeed/faits-divers-crawler/internal/store"
	"github.com/villefeed/faits-divers-crawler/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fdcrawler: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfgPath  = flag.String("config", "", "path to config file (optional)")
		startStr = flag.String("start", "", "first date to crawl, YYYY-MM-DD (overrides config)")
		endStr   = flag.String("end", "", "last date to crawl, YYYY-MM-DD (overrides config)")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *startStr != "" {
		cfg.Crawl.Start = *startStr
	}
	if *endStr != "" {
		cfg.Crawl.End = *endStr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gaz, err := gazetteer.LoadCities(cfg.Site.CitiesCSV, logger)
	if err != nil {
		return fmt.Errorf("load cities: %w", err)
	}
	hints, err := gazetteer.LoadHints(cfg.Site.HintsCSV, logger)
	if err != nil {
		return fmt.Errorf("load popular city hints: %w", err)
	}
	loc := resolver.New(gaz, hints, logger)

	st, err := store.NewPostgresStore(ctx, store.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: int32(cfg.DB.MaxConns),
	})
	if err != nil {
		return fmt.Errorf("connect remote table: %w", err)
	}
	defer st.Close()

	arc, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}

	pub, closePub, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePub()

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	statusSink := sinks.NewStatusSink()
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger), promSink, statusSink)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.Close(closeCtx)
	}()

	if cfg.Server.Enabled {
		startServer(ctx, cfg.Server.Port, statusSink, registry, logger)
	}

	harv := harvester.New(harvester.Config{
		BaseURL:   cfg.Site.BaseURL,
		UserAgent: cfg.Site.UserAgent,
		Timeout:   cfg.Timeout(),
	}, arc, logger)

	controller := crawl.New(harv, loc, system.New(), hub,
		crawl.Config{PageDelay: cfg.PageDelay()}, logger)

	start, end, ok, err := resolveRange(ctx, cfg, controller, st)
	if err != nil {
		return err
	}
	if !ok {
		logger.Info("remote table is up to date, nothing to crawl")
		return nil
	}

	runID := uuid.New()
	candidates, err := controller.Run(ctx, runID, start, end)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	writer := syncer.New(st, pub, hub,
		syncer.Config{BatchSize: cfg.DB.BatchSize, Topic: cfg.PubSub.TopicName}, logger)
	if _, err := writer.Sync(ctx, runID, candidates); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func buildArchive(ctx context.Context, cfg config.Config) (archive.Archive, error) {
	switch cfg.Archive.Backend {
	case "off":
		return nil, nil
	case "memory":
		return memoryarchive.New(), nil
	case "local":
		return localarchive.New(cfg.Archive.LocalDir)
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init storage client: %w", err)
		}
		return gcsarchive.New(client, cfg.Archive.GCSBucket, cfg.Archive.Prefix)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (publisher.Publisher, func(), error) {
	if cfg.PubSub.TopicName == "" {
		return memorypublisher.New(), func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("init pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	closeFn := func() {
		topic.Stop()
		_ = client.Close()
	}
	return gcppublisher.New(topic), closeFn, nil
}

// resolveRange prefers explicit bounds from flags/config and falls back to
// the remote checkpoint. A lone end bound starts at the epoch; a lone start
// bound ends today.
func resolveRange(ctx context.Context, cfg config.Config, controller *crawl.Controller, cp crawl.Checkpoint) (time.Time, time.Time, bool, error) {
	if cfg.Crawl.Start != "" || cfg.Crawl.End != "" {
		start, err := parseBound(cfg.Crawl.Start, crawl.EpochDate)
		if err != nil {
			return time.Time{}, time.Time{}, false, err
		}
		end, err := parseBound(cfg.Crawl.End, time.Now().UTC().Format("2006-01-02"))
		if err != nil {
			return time.Time{}, time.Time{}, false, err
		}
		return start, end, true, nil
	}
	return controller.ResolveRange(ctx, cp)
}

func parseBound(s, fallback string) (time.Time, error) {
	if s == "" {
		s = fallback
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func startServer(ctx context.Context, port int, status api.StatusSource, registry *prometheus.Registry, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(status, registry, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()
}
