// Package harvester fetches listing and article pages from the source site
// and extracts raw tuples for the crawl controller. Fetch failures are
// reported as empty results, never as errors: the controller treats an empty
// listing as the end of a date's pagination and an empty detail as an article
// with no body.
package harvester

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/villefeed/faits-divers-crawler/internal/archive"
)

// Headline is one entry of a listing page.
type Headline struct {
	Title string
	URL   string
}

// Detail carries the article fields extracted from a detail page. All fields
// are empty when the fetch fails.
type Detail struct {
	Body      string
	SourceURL string
	Labels    []string
}

// Config controls collector behavior.
type Config struct {
	// BaseURL is the site root, e.g. "https://www.fdesouche.com".
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Harvester implements the page-fetch boundary using a Colly collector.
type Harvester struct {
	cfg           Config
	baseCollector *colly.Collector
	archive       archive.Archive
	logger        *zap.Logger
}

// New builds a Harvester. archive may be nil to disable raw-page retention.
func New(cfg Config, arc archive.Archive, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	// Synchronous collection is the default; colly v2.1.0's Async option
	// ignores its argument and always enables async mode, so it must not
	// be passed here.
	c := colly.NewCollector()
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Harvester{
		cfg:           cfg,
		baseCollector: c,
		archive:       arc,
		logger:        logger,
	}
}

// ListingURL returns the listing page URL for a day and 1-based page index.
func (h *Harvester) ListingURL(day time.Time, page int) string {
	return fmt.Sprintf("%s/%04d/%02d/%02d/page/%d/",
		strings.TrimRight(h.cfg.BaseURL, "/"), day.Year(), int(day.Month()), day.Day(), page)
}

// Listing fetches one listing page and returns its headlines in page order.
// A transport error, timeout, or non-success status yields an empty slice.
func (h *Harvester) Listing(ctx context.Context, day time.Time, page int) []Headline {
	url := h.ListingURL(day, page)
	var headlines []Headline

	collector := h.newCollector()
	collector.OnHTML("article h2.entry-title a", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.Text)
		href := e.Attr("href")
		if title == "" || href == "" {
			return
		}
		headlines = append(headlines, Headline{Title: title, URL: e.Request.AbsoluteURL(href)})
	})

	if err := h.visit(ctx, collector, url); err != nil {
		h.logger.Debug("listing fetch failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	return headlines
}

// Details fetches one article page. Any failure returns the zero Detail.
func (h *Harvester) Details(ctx context.Context, url string) Detail {
	var detail Detail

	collector := h.newCollector()
	collector.OnHTML("div.entry-content", func(e *colly.HTMLElement) {
		if detail.Body != "" {
			return
		}
		detail.Body = strings.ReplaceAll(strings.TrimSpace(e.Text), `"`, " ")
		e.DOM.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.ToLower(strings.TrimSpace(s.Text()))
			if strings.Contains(text, "source") || strings.Contains(text, "via") {
				detail.SourceURL = s.AttrOr("href", "")
				return false
			}
			return true
		})
	})
	collector.OnHTML("div.entry-category a", func(e *colly.HTMLElement) {
		if label := strings.TrimSpace(e.Text); label != "" {
			detail.Labels = append(detail.Labels, label)
		}
	})
	if h.archive != nil {
		collector.OnResponse(func(r *colly.Response) {
			h.archivePage(r)
		})
	}

	if err := h.visit(ctx, collector, url); err != nil {
		h.logger.Debug("article fetch failed", zap.String("url", url), zap.Error(err))
		return Detail{}
	}
	return detail
}

func (h *Harvester) newCollector() *colly.Collector {
	collector := h.baseCollector.Clone()
	if h.cfg.UserAgent != "" {
		collector.UserAgent = h.cfg.UserAgent
	}
	collector.SetRequestTimeout(h.cfg.Timeout)
	return collector
}

// visit runs the collector against a single URL, honoring ctx cancellation.
func (h *Harvester) visit(ctx context.Context, collector *colly.Collector, url string) error {
	var fetchErr error
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return fmt.Errorf("response %s: %w", url, fetchErr)
		}
		return nil
	}
}

// archivePage retains the raw HTML of a fetched article. Archive failures are
// logged and ignored; retention is best effort.
func (h *Harvester) archivePage(r *colly.Response) {
	key := archiveKey(r.Request.URL.Host, r.Request.URL.Path)
	uri, err := h.archive.Put(context.Background(), key, "text/html; charset=utf-8", r.Body)
	if err != nil {
		h.logger.Warn("page archive failed", zap.String("key", key), zap.Error(err))
		return
	}
	h.logger.Debug("page archived", zap.String("uri", uri))
}

func archiveKey(host, path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		trimmed = "index"
	}
	return host + "/" + trimmed + ".html"
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
