package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/villefeed/faits-divers-crawler/internal/progress"
)

// Snapshot is the current view of a crawl run, served by the status API.
type Snapshot struct {
	RunID           string    `json:"run_id"`
	State           string    `json:"state"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
	CurrentDate     string    `json:"current_date,omitempty"`
	DatesProcessed  int       `json:"dates_processed"`
	PagesFetched    int       `json:"pages_fetched"`
	ArticlesKept    int       `json:"articles_kept"`
	ArticlesSkipped int       `json:"articles_skipped"`
	RowsSynced      int       `json:"rows_synced"`
	LastError       string    `json:"last_error,omitempty"`
}

// StatusSink aggregates events into an in-memory Snapshot.
type StatusSink struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStatusSink creates an empty StatusSink.
func NewStatusSink() *StatusSink {
	return &StatusSink{snap: Snapshot{State: "idle"}}
}

// Consume folds the batch into the snapshot.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StatusSink) apply(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.snap = Snapshot{
			RunID:     evt.RunID.String(),
			State:     "running",
			StartedAt: evt.TS,
		}
	case progress.StageRunDone:
		s.snap.State = "done"
		s.snap.FinishedAt = evt.TS
		s.snap.CurrentDate = ""
	case progress.StageRunError:
		s.snap.State = "error"
		s.snap.FinishedAt = evt.TS
		s.snap.LastError = evt.Note
	case progress.StageDateStart:
		s.snap.CurrentDate = evt.Date
	case progress.StageDateDone:
		s.snap.DatesProcessed++
	case progress.StagePageDone:
		s.snap.PagesFetched++
	case progress.StageArticleKept:
		s.snap.ArticlesKept++
	case progress.StageArticleSkipped:
		s.snap.ArticlesSkipped++
	case progress.StageSyncBatch:
		s.snap.RowsSynced += evt.Count
	}
}

// Current returns a copy of the snapshot.
func (s *StatusSink) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
