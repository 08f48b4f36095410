// Package syncer assigns identifiers to crawl candidates and writes them to
// the remote table in idempotent, batched inserts.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/villefeed/faits-divers-crawler/internal/gazetteer"
	"github.com/villefeed/faits-divers-crawler/internal/progress"
	"github.com/villefeed/faits-divers-crawler/internal/publisher"
	"github.com/villefeed/faits-divers-crawler/internal/store"
)

// Candidate is a scraped article whose headline resolved to a municipality.
// It is immutable once created; the syncer only reads it.
type Candidate struct {
	Date      time.Time
	Title     string
	Body      string
	OriginURL string
	SourceURL string
	Labels    []string
	City      gazetteer.Municipality
}

// Outcome summarizes one sync call.
type Outcome struct {
	Inserted int
	Skipped  int
	Batches  int
	FirstID  int64
	LastID   int64
}

// Config controls batching and notification.
type Config struct {
	// BatchSize caps rows per insert statement (default 1000).
	BatchSize int
	// Topic names the notification topic; empty disables publishing.
	Topic string
}

const defaultBatchSize = 1000

// Writer performs the sync. Identifiers are never reused across runs because
// every run re-reads the remote max id before assigning.
type Writer struct {
	store   store.Store
	pub     publisher.Publisher
	emitter progress.Emitter
	cfg     Config
	logger  *zap.Logger
}

// New builds a Writer. pub and emitter may be nil.
func New(st store.Store, pub publisher.Publisher, emitter progress.Emitter, cfg Config, logger *zap.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: st, pub: pub, emitter: emitter, cfg: cfg, logger: logger}
}

// Sync filters candidates already present remotely (by origin URL, scoped per
// date), assigns sequential identifiers to the survivors, and inserts them in
// atomic batches. A failing batch aborts the sync; batches committed before it
// stay committed, and a re-run is safe because the de-dup filter and max-id
// read repeat against the updated remote state.
func (w *Writer) Sync(ctx context.Context, runID uuid.UUID, candidates []Candidate) (Outcome, error) {
	var outcome Outcome
	if len(candidates) == 0 {
		w.logger.Info("nothing to sync")
		return outcome, nil
	}

	maxID, err := w.store.MaxID(ctx)
	if err != nil {
		return outcome, fmt.Errorf("read max id: %w", err)
	}

	existing, err := w.existingLinks(ctx, candidates)
	if err != nil {
		return outcome, err
	}

	records := w.assign(candidates, maxID, existing, &outcome)
	if len(records) == 0 {
		w.logger.Info("no new articles after de-dup", zap.Int("skipped", outcome.Skipped))
		return outcome, nil
	}
	outcome.FirstID = records[0].ID
	outcome.LastID = records[len(records)-1].ID

	for i := 0; i < len(records); i += w.cfg.BatchSize {
		end := min(i+w.cfg.BatchSize, len(records))
		batch := records[i:end]
		batchIndex := i/w.cfg.BatchSize + 1
		if err := w.store.InsertBatch(ctx, batch); err != nil {
			return outcome, fmt.Errorf("insert batch %d: %w", batchIndex, err)
		}
		outcome.Batches++
		outcome.Inserted += len(batch)
		w.emit(runID, len(batch))
		w.notify(ctx, runID, batch, batchIndex)
	}

	w.logger.Info("sync complete",
		zap.Int("inserted", outcome.Inserted),
		zap.Int("skipped", outcome.Skipped),
		zap.Int("batches", outcome.Batches),
		zap.Int64("first_id", outcome.FirstID),
		zap.Int64("last_id", outcome.LastID),
	)
	return outcome, nil
}

// existingLinks collects the origin URLs already stored for every affected
// date. Scoping the query per date keeps it bounded.
func (w *Writer) existingLinks(ctx context.Context, candidates []Candidate) (map[string]map[string]struct{}, error) {
	existing := make(map[string]map[string]struct{})
	for _, c := range candidates {
		day := c.Date.Format("2006-01-02")
		if _, ok := existing[day]; ok {
			continue
		}
		links, err := w.store.LinksForDate(ctx, c.Date)
		if err != nil {
			return nil, fmt.Errorf("read existing links for %s: %w", day, err)
		}
		existing[day] = links
	}
	return existing, nil
}

// assign filters duplicates and numbers the survivors maxID+1, +2, ... in
// candidate order. Skipped candidates consume no identifier.
func (w *Writer) assign(candidates []Candidate, maxID int64, existing map[string]map[string]struct{}, outcome *Outcome) []store.Record {
	records := make([]store.Record, 0, len(candidates))
	nextID := maxID + 1
	for _, c := range candidates {
		day := c.Date.Format("2006-01-02")
		if _, dup := existing[day][c.OriginURL]; dup {
			outcome.Skipped++
			w.logger.Debug("candidate already synced", zap.String("origin_url", c.OriginURL))
			continue
		}
		records = append(records, store.Record{
			ID:             nextID,
			Date:           c.Date,
			City:           c.City.Name,
			Latitude:       c.City.Latitude,
			Longitude:      c.City.Longitude,
			Title:          c.Title,
			Body:           c.Body,
			OriginURL:      c.OriginURL,
			SourceURL:      c.SourceURL,
			Labels:         c.Labels,
			DepartmentCode: c.City.DepartmentCode,
		})
		nextID++
	}
	return records
}

func (w *Writer) emit(runID uuid.UUID, rows int) {
	if w.emitter == nil {
		return
	}
	w.emitter.Emit(progress.Event{
		RunID: runID,
		TS:    time.Now().UTC(),
		Stage: progress.StageSyncBatch,
		Count: rows,
	})
}

// notify publishes a batch summary. Failures are logged, never propagated:
// the rows are already committed.
func (w *Writer) notify(ctx context.Context, runID uuid.UUID, batch []store.Record, batchIndex int) {
	if w.pub == nil || w.cfg.Topic == "" {
		return
	}
	dates := make([]string, 0, 1)
	seen := make(map[string]struct{})
	for _, rec := range batch {
		day := rec.Date.Format("2006-01-02")
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			dates = append(dates, day)
		}
	}
	notice := publisher.BatchNotice{
		RunID:      runID.String(),
		Dates:      dates,
		FirstID:    batch[0].ID,
		LastID:     batch[len(batch)-1].ID,
		Rows:       len(batch),
		BatchIndex: batchIndex,
	}
	if _, err := w.pub.Publish(ctx, w.cfg.Topic, notice); err != nil {
		w.logger.Warn("batch notification failed", zap.Error(err))
	}
}
