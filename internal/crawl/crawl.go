// Package crawl drives incremental runs over the source site: it walks a date
// range, paginates each date's listings until the site reports no more
// articles, resolves headlines to municipalities, and hands the surviving
// candidates to the sync writer.
package crawl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/villefeed/faits-divers-crawler/internal/gazetteer"
	"github.com/villefeed/faits-divers-crawler/internal/harvester"
	"github.com/villefeed/faits-divers-crawler/internal/progress"
	"github.com/villefeed/faits-divers-crawler/internal/syncer"
)

// EpochDate is the first date worth crawling. It bounds the derived range when
// the remote table is empty.
const EpochDate = "2022-01-01"

// Clock supplies the current time so runs can be tested against fixed dates.
type Clock interface {
	Now() time.Time
}

// Site is the page-fetch boundary. An empty listing means the date has no
// further pages; a zero Detail means the article page could not be read.
type Site interface {
	Listing(ctx context.Context, day time.Time, page int) []harvester.Headline
	Details(ctx context.Context, url string) harvester.Detail
}

// Locator maps a headline to a municipality.
type Locator interface {
	Resolve(title string) (gazetteer.Municipality, bool)
}

// Checkpoint exposes the newest date already synced remotely.
type Checkpoint interface {
	LastDate(ctx context.Context) (time.Time, bool, error)
}

// Config controls pacing.
type Config struct {
	// PageDelay is the pause between listing fetches within a date
	// (default 500ms).
	PageDelay time.Duration
}

const defaultPageDelay = 500 * time.Millisecond

// Controller runs the crawl. It holds no mutable state between runs.
type Controller struct {
	site    Site
	locator Locator
	clock   Clock
	emitter progress.Emitter
	cfg     Config
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New builds a Controller. emitter may be nil.
func New(site Site, locator Locator, clock Clock, emitter progress.Emitter, cfg Config, logger *zap.Logger) *Controller {
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = defaultPageDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		site:    site,
		locator: locator,
		clock:   clock,
		emitter: emitter,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// ResolveRange derives the dates a catch-up run should cover: the day after
// the newest remote date through today. An empty remote table starts the range
// at EpochDate. ok is false when the remote is already up to date.
func (c *Controller) ResolveRange(ctx context.Context, cp Checkpoint) (start, end time.Time, ok bool, err error) {
	last, found, err := cp.LastDate(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("read last synced date: %w", err)
	}
	if found {
		start = midnightUTC(last).AddDate(0, 0, 1)
	} else {
		start, _ = time.Parse("2006-01-02", EpochDate)
	}
	end = midnightUTC(c.clock.Now())
	if start.After(end) {
		return time.Time{}, time.Time{}, false, nil
	}
	return start, end, true, nil
}

// Run crawls every date in [start, end] and returns the resolved candidates in
// crawl order. Cancellation stops the run between fetches; the error then
// wraps context.Canceled and the returned slice holds what was collected so
// far.
func (c *Controller) Run(ctx context.Context, runID uuid.UUID, start, end time.Time) ([]syncer.Candidate, error) {
	start = midnightUTC(start)
	end = midnightUTC(end)
	if start.After(end) {
		return nil, fmt.Errorf("start date %s is after end date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	began := time.Now()
	c.emit(progress.Event{RunID: runID, Stage: progress.StageRunStart,
		Note: fmt.Sprintf("%s..%s", start.Format("2006-01-02"), end.Format("2006-01-02"))})
	c.logger.Info("run started",
		zap.String("run_id", runID.String()),
		zap.String("start", start.Format("2006-01-02")),
		zap.String("end", end.Format("2006-01-02")),
	)

	var candidates []syncer.Candidate
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dayCandidates, err := c.crawlDate(ctx, runID, day)
		candidates = append(candidates, dayCandidates...)
		if err != nil {
			c.emit(progress.Event{RunID: runID, Stage: progress.StageRunError,
				Date: day.Format("2006-01-02"), Note: err.Error(), Dur: time.Since(began)})
			return candidates, err
		}
	}

	c.emit(progress.Event{RunID: runID, Stage: progress.StageRunDone,
		Count: len(candidates), Dur: time.Since(began)})
	c.logger.Info("run complete",
		zap.String("run_id", runID.String()),
		zap.Int("candidates", len(candidates)),
		zap.Duration("took", time.Since(began)),
	)
	return candidates, nil
}

// crawlDate paginates one date until the first empty listing page.
func (c *Controller) crawlDate(ctx context.Context, runID uuid.UUID, day time.Time) ([]syncer.Candidate, error) {
	date := day.Format("2006-01-02")
	began := time.Now()
	c.emit(progress.Event{RunID: runID, Stage: progress.StageDateStart, Date: date})

	var candidates []syncer.Candidate
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return candidates, fmt.Errorf("crawl canceled: %w", err)
		}
		if page > 1 {
			if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
				return candidates, fmt.Errorf("crawl canceled: %w", err)
			}
		}

		headlines := c.site.Listing(ctx, day, page)
		if len(headlines) == 0 {
			break
		}
		for _, hl := range headlines {
			cand, ok := c.examine(ctx, runID, day, hl)
			if ok {
				candidates = append(candidates, cand)
			}
		}
		c.emit(progress.Event{RunID: runID, Stage: progress.StagePageDone,
			Date: date, Page: page, Count: len(headlines)})
	}

	c.emit(progress.Event{RunID: runID, Stage: progress.StageDateDone,
		Date: date, Count: len(candidates), Dur: time.Since(began)})
	c.logger.Debug("date crawled", zap.String("date", date), zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// examine resolves one headline and, when it names a known municipality,
// fetches the article page and builds the candidate. The headline is flattened
// before resolution: a line break inside a city name must not hide the city.
func (c *Controller) examine(ctx context.Context, runID uuid.UUID, day time.Time, hl harvester.Headline) (syncer.Candidate, bool) {
	title := flattenNewlines(hl.Title)
	city, ok := c.locator.Resolve(title)
	if !ok {
		c.emit(progress.Event{RunID: runID, Stage: progress.StageArticleSkipped,
			Date: day.Format("2006-01-02"), URL: hl.URL, Note: "unresolved"})
		return syncer.Candidate{}, false
	}

	detail := c.site.Details(ctx, hl.URL)
	c.emit(progress.Event{RunID: runID, Stage: progress.StageArticleKept,
		Date: day.Format("2006-01-02"), URL: hl.URL, Note: city.Name})
	return syncer.Candidate{
		Date:      day,
		Title:     title,
		Body:      flattenNewlines(detail.Body),
		OriginURL: hl.URL,
		SourceURL: detail.SourceURL,
		Labels:    detail.Labels,
		City:      city,
	}, true
}

func (c *Controller) emit(evt progress.Event) {
	if c.emitter == nil {
		return
	}
	evt.TS = time.Now().UTC()
	c.emitter.Emit(evt)
}

// newlineReplacer turns each line break into one space; deleting them outright
// would glue the surrounding words together.
var newlineReplacer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// flattenNewlines replaces embedded line breaks with spaces so every stored
// field stays single line.
func flattenNewlines(s string) string {
	return newlineReplacer.Replace(s)
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
