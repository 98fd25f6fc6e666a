package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"oilcatalog/internal/core/reconcile"
	"oilcatalog/internal/platform/browser"
)

// Stats are the run-level counters. Per-item problems only ever show up here
// and in the log.
type Stats struct {
	Pages      int `json:"pages"`
	Discovered int `json:"discovered"`
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Rejected   int `json:"rejected"`
	Collisions int `json:"collisions"`
	Ambiguous  int `json:"ambiguous"`
	CacheHits  int `json:"cache_hits"`
	Writes     int `json:"writes"`
}

// CrawlSession is the state of one run, threaded through every step.
type CrawlSession struct {
	RunID   string
	Page    browser.Page
	Index   *reconcile.Index
	Stats   Stats
	State   State
	Started time.Time

	limiter *rate.Limiter
	// detail URL -> business key for every item reconciled this run
	keys map[string]string
}

func newSession(runID string, page browser.Page, ix *reconcile.Index, perMinute int) *CrawlSession {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &CrawlSession{
		RunID:   runID,
		Page:    page,
		Index:   ix,
		State:   StateIdle,
		Started: time.Now(),
		limiter: rate.NewLimiter(limit, 1),
		keys:    map[string]string{},
	}
}

// navigate waits for a rate-limit token before every page load.
func (s *CrawlSession) navigate(ctx context.Context, url string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return s.Page.Navigate(ctx, url)
}

// rateLimitedPage lets discoverers share the session limiter.
type rateLimitedPage struct {
	browser.Page
	session *CrawlSession
}

func (p rateLimitedPage) Navigate(ctx context.Context, url string) error {
	return p.session.navigate(ctx, url)
}
