package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/villefeed/faits-divers-crawler/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := uuid.New()
	now := time.Now().UTC()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{RunID: runID, TS: now, Stage: progress.StageDateStart, Date: "2024-03-01"},
		{RunID: runID, TS: now, Stage: progress.StagePageDone, Date: "2024-03-01", Page: 1, Count: 8},
		{RunID: runID, TS: now, Stage: progress.StageArticleKept, URL: "https://example.org/a"},
		{RunID: runID, TS: now, Stage: progress.StageArticleSkipped, URL: "https://example.org/b", Note: "no_city"},
		{RunID: runID, TS: now, Stage: progress.StageDateDone, Date: "2024-03-01"},
		{RunID: runID, TS: now, Stage: progress.StageSyncBatch, Count: 42},
		{RunID: runID, TS: now, Stage: progress.StageRunDone, Dur: 90 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.datesProcessed))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pagesFetched))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.articlesKept))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.articlesSkipped.WithLabelValues("no_city")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.syncBatches))
	require.Equal(t, 42.0, testutil.ToFloat64(sink.rowsSynced))
	require.Equal(t, 1, testutil.CollectAndCount(sink.runDuration, "fdcrawler_run_duration_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
