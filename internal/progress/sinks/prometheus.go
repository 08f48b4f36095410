package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/villefeed/faits-divers-crawler/internal/progress"
)

// PrometheusSink exports crawl progress metrics. It owns all collectors for
// run, page, article, and sync counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	datesProcessed prometheus.Counter
	pagesFetched   prometheus.Counter
	pageArticles   prometheus.Histogram

	articlesKept    prometheus.Counter
	articlesSkipped *prometheus.CounterVec

	syncBatches prometheus.Counter
	rowsSynced  prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fdcrawler_runs_started_total",
			Help: "Total crawl runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fdcrawler_runs_completed_total",
			Help: "Total crawl runs completed partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fdcrawler_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"result"}),
		datesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fdcrawler_dates_processed_total",
			Help: "Calendar dates fully paginated.",
		}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fdcrawler_pages_fetched_total",
			Help: "Listing pages fetched, including the terminal empty page.",
		}),
		pageArticles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fdcrawler_page_articles",
			Help:    "Headlines per listing page.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		articlesKept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fdcrawler_articles_kept_total",
			Help: "Articles with a resolved municipality.",
		}),
		articlesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fdcrawler_articles_skipped_total",
			Help: "Articles dropped, partitioned by reason.",
		}, []string{"reason"}),
		syncBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fdcrawler_sync_batches_total",
			Help: "Batches committed to the remote table.",
		}),
		rowsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fdcrawler_rows_synced_total",
			Help: "Rows inserted into the remote table.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.datesProcessed,
		s.pagesFetched,
		s.pageArticles,
		s.articlesKept,
		s.articlesSkipped,
		s.syncBatches,
		s.rowsSynced,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeRun(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeRun(evt, "error")
	case progress.StageDateDone:
		s.datesProcessed.Inc()
	case progress.StagePageDone:
		s.pagesFetched.Inc()
		s.pageArticles.Observe(float64(evt.Count))
	case progress.StageArticleKept:
		s.articlesKept.Inc()
	case progress.StageArticleSkipped:
		reason := evt.Note
		if reason == "" {
			reason = "unknown"
		}
		s.articlesSkipped.WithLabelValues(reason).Inc()
	case progress.StageSyncBatch:
		s.syncBatches.Inc()
		s.rowsSynced.Add(float64(evt.Count))
	}
}

func (s *PrometheusSink) observeRun(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
