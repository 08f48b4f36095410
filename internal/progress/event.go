// Package progress defines the event stream emitted by the crawl pipeline.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageRunError       Stage = "RUN_ERROR"
	StageDateStart      Stage = "DATE_START"
	StageDateDone       Stage = "DATE_DONE"
	StagePageDone       Stage = "PAGE_DONE"
	StageArticleKept    Stage = "ARTICLE_KEPT"
	StageArticleSkipped Stage = "ARTICLE_SKIPPED"
	StageSyncBatch      Stage = "SYNC_BATCH"
)

// Event captures one milestone of a crawl/sync run.
type Event struct {
	// RunID identifies the run this event belongs to.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Date is the crawl date being processed, "YYYY-MM-DD"; empty for
	// run-level events.
	Date string
	// Page is the 1-based listing page index for PAGE_DONE events.
	Page int
	// URL optionally carries the article or listing URL.
	URL string
	// Count carries a stage-specific quantity: headlines on a page, rows in
	// a committed batch, candidates at run completion.
	Count int
	// Dur captures execution latency where meaningful.
	Dur time.Duration
	// Note attaches low-volume context, e.g. skip reason or error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageDateStart, StageDateDone:
		if e.Date == "" {
			return fmt.Errorf("%s requires a date", e.Stage)
		}
	case StagePageDone:
		if e.Date == "" {
			return errors.New("page done requires a date")
		}
		if e.Page < 1 {
			return errors.New("page done requires a page index >= 1")
		}
	case StageArticleKept, StageArticleSkipped:
		if e.URL == "" {
			return fmt.Errorf("%s requires a url", e.Stage)
		}
	case StageSyncBatch:
		if e.Count < 0 {
			return errors.New("sync batch requires a non-negative count")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
