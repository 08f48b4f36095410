package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/villefeed/faits-divers-crawler/internal/progress"
)

func TestStatusSinkTracksRunLifecycle(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	require.Equal(t, "idle", sink.Current().State)

	runID := uuid.New()
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	batch := []progress.Event{
		{RunID: runID, TS: start, Stage: progress.StageRunStart},
		{RunID: runID, TS: start, Stage: progress.StageDateStart, Date: "2024-03-01"},
		{RunID: runID, TS: start, Stage: progress.StagePageDone, Date: "2024-03-01", Page: 1, Count: 4},
		{RunID: runID, TS: start, Stage: progress.StageArticleKept, URL: "https://example.org/a"},
		{RunID: runID, TS: start, Stage: progress.StageArticleSkipped, URL: "https://example.org/b", Note: "no_city"},
		{RunID: runID, TS: start, Stage: progress.StageSyncBatch, Count: 10},
		{RunID: runID, TS: start, Stage: progress.StageDateDone, Date: "2024-03-01"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	snap := sink.Current()
	require.Equal(t, "running", snap.State)
	require.Equal(t, runID.String(), snap.RunID)
	require.Equal(t, 1, snap.DatesProcessed)
	require.Equal(t, 1, snap.PagesFetched)
	require.Equal(t, 1, snap.ArticlesKept)
	require.Equal(t, 1, snap.ArticlesSkipped)
	require.Equal(t, 10, snap.RowsSynced)

	done := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: done, Stage: progress.StageRunDone},
	}))
	snap = sink.Current()
	require.Equal(t, "done", snap.State)
	require.Equal(t, done, snap.FinishedAt)
	require.Empty(t, snap.CurrentDate)
}

func TestStatusSinkRecordsError(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	runID := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{RunID: runID, TS: now, Stage: progress.StageRunError, Note: "insert batch 2: boom"},
	}))

	snap := sink.Current()
	require.Equal(t, "error", snap.State)
	require.Equal(t, "insert batch 2: boom", snap.LastError)
}
