// Package pipeline runs a crawl: discover listing pages, extract and normalize
// each detail page, reconcile it against the store and persist changes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"oilcatalog/internal/config"
	"oilcatalog/internal/core/discover"
	"oilcatalog/internal/core/extract"
	"oilcatalog/internal/core/normalize"
	"oilcatalog/internal/core/product"
	"oilcatalog/internal/core/reconcile"
	"oilcatalog/internal/core/store"
	"oilcatalog/internal/logger"
	"oilcatalog/internal/platform/browser"
)

var (
	// ErrPersist marks a partition write failure; it ends the run.
	ErrPersist         = errors.New("partition write failed")
	ErrUnknownCategory = errors.New("unknown category")
)

// Browser is what a run needs from the driver.
type Browser interface {
	NewPage() (browser.Page, error)
	Close() error
}

// Launcher starts a browser for one run.
type Launcher func() (Browser, error)

// PageCache keeps rendered detail HTML between runs.
type PageCache interface {
	GetPage(ctx context.Context, url string) (string, bool)
	SetPage(ctx context.Context, url, html string)
}

// Tracker records run progress for the control plane.
type Tracker interface {
	Pending(ctx context.Context, runID string, req Request) error
	Start(ctx context.Context, runID string, req Request) error
	Progress(ctx context.Context, runID string, state State, stats Stats) error
	Finish(ctx context.Context, sum Summary) error
}

type Notifier interface {
	RunFinished(ctx context.Context, sum Summary) error
}

type Publisher interface {
	PublishAggregate(ctx context.Context, path string) (string, error)
}

// Request selects what a run crawls. StartPage is the zero-based listing page
// to begin with; MaxPages 0 means until a page yields no links.
type Request struct {
	RunID      string   `json:"run_id,omitempty"`
	Categories []string `json:"categories"`
	StartPage  int      `json:"start_page"`
	MaxPages   int      `json:"max_pages"`
	NoCache    bool     `json:"no_cache"`
}

// Summary is the outcome of a run.
type Summary struct {
	RunID      string    `json:"run_id"`
	State      State     `json:"state"`
	Categories []string  `json:"categories"`
	Stats      Stats     `json:"stats"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Error      string    `json:"error,omitempty"`
	Published  string    `json:"published,omitempty"`
}

type Options struct {
	Backoff      Backoff
	NavPerMinute int
	UserAgent    string
	WaitTimeout  time.Duration
}

type Service struct {
	catalog   *config.Catalog
	launch    Launcher
	extract   *extract.Service
	normalize *normalize.Service
	store     *store.Store
	cache     PageCache
	tracker   Tracker
	notifier  Notifier
	publisher Publisher
	opts      Options
	log       *logger.Logger
}

func NewService(catalog *config.Catalog, launch Launcher, ext *extract.Service, norm *normalize.Service, st *store.Store, opts Options) *Service {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	return &Service{
		catalog:   catalog,
		launch:    launch,
		extract:   ext,
		normalize: norm,
		store:     st,
		opts:      opts,
		log:       logger.New("Pipeline"),
	}
}

func (s *Service) WithLogger(l *logger.Logger) *Service { s.log = l; return s }
func (s *Service) WithCache(c PageCache) *Service       { s.cache = c; return s }
func (s *Service) WithTracker(t Tracker) *Service       { s.tracker = t; return s }
func (s *Service) WithNotifier(n Notifier) *Service     { s.notifier = n; return s }
func (s *Service) WithPublisher(p Publisher) *Service   { s.publisher = p; return s }

// Run executes one crawl. Per-item failures are counted, never returned; the
// returned error is a fatal start-up failure, a persistence failure or
// cancellation.
func (s *Service) Run(ctx context.Context, req Request) (Summary, error) {
	sum := Summary{RunID: req.RunID, State: StateIdle, Started: time.Now()}
	if sum.RunID == "" {
		sum.RunID = uuid.New().String()
	}

	cats, err := s.resolve(req.Categories)
	if err != nil {
		return sum, err
	}
	for _, c := range cats {
		sum.Categories = append(sum.Categories, c.ID)
	}
	log := s.log.With(shortID(sum.RunID))

	if s.tracker != nil {
		if err := s.tracker.Start(ctx, sum.RunID, req); err != nil {
			log.LogWarnf("run status unavailable: %v", err)
		}
	}

	sess, closeBrowser, err := s.open(sum.RunID)
	if err != nil {
		sum.State = StateFatalError
		return s.finish(ctx, log, sum, nil, err)
	}
	defer closeBrowser()

	log.Info().Strs("categories", sum.Categories).Int("indexed", sess.Index.Len()).Int("start_page", req.StartPage).Msg("run started")

	var runErr error
	for _, cat := range cats {
		if runErr = s.crawlCategory(ctx, log.With(cat.ID), sess, cat, req); runErr != nil {
			break
		}
	}

	switch {
	case runErr == nil:
		sess.State = StateDone
	case ctx.Err() != nil:
		sess.State = StateCancelled
	default:
		sess.State = StateFatalError
	}
	sum.State = sess.State
	return s.finish(ctx, log, sum, sess, runErr)
}

// open reads the store, builds the index and starts the browser.
func (s *Service) open(runID string) (*CrawlSession, func(), error) {
	parts, err := s.store.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read store: %w", err)
	}
	ix := reconcile.Build(parts, s.log)

	b, err := s.launch()
	if err != nil {
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}
	page, err := b.NewPage()
	if err != nil {
		_ = b.Close()
		return nil, nil, fmt.Errorf("open page: %w", err)
	}
	closer := func() {
		if err := page.Close(); err != nil {
			s.log.LogDebugf("close page: %v", err)
		}
		if err := b.Close(); err != nil {
			s.log.LogWarnf("close browser: %v", err)
		}
	}
	return newSession(runID, page, ix, s.opts.NavPerMinute), closer, nil
}

func (s *Service) finish(ctx context.Context, log *logger.Logger, sum Summary, sess *CrawlSession, runErr error) (Summary, error) {
	if sess != nil {
		sum.Stats = sess.Stats
	}
	sum.Finished = time.Now()
	if runErr != nil {
		sum.Error = runErr.Error()
	}

	// reporting must outlive a cancelled run context
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if s.publisher != nil && sum.Stats.Writes > 0 && sum.State == StateDone {
		if url, err := s.publisher.PublishAggregate(rctx, s.store.AggregatePath()); err != nil {
			log.LogWarnf("publish aggregate: %v", err)
		} else {
			sum.Published = url
		}
	}
	if s.tracker != nil {
		if err := s.tracker.Finish(rctx, sum); err != nil {
			log.LogWarnf("record run status: %v", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.RunFinished(rctx, sum); err != nil {
			log.LogWarnf("webhook: %v", err)
		}
	}

	st := sum.Stats
	ev := log.Success()
	if runErr != nil {
		ev = log.Error().Err(runErr)
	}
	ev.Str("state", string(sum.State)).
		Int("pages", st.Pages).
		Int("discovered", st.Discovered).
		Int("inserted", st.Inserted).
		Int("updated", st.Updated).
		Int("skipped", st.Skipped).
		Int("failed", st.Failed).
		Int("rejected", st.Rejected).
		Int("collisions", st.Collisions).
		Dur("elapsed", sum.Finished.Sub(sum.Started)).
		Msg("run finished")
	return sum, runErr
}

func (s *Service) resolve(ids []string) ([]config.CategorySource, error) {
	if len(ids) == 0 {
		return s.catalog.Categories, nil
	}
	out := make([]config.CategorySource, 0, len(ids))
	for _, id := range ids {
		cat, ok := s.catalog.Category(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not in the catalog", ErrUnknownCategory, id)
		}
		if _, err := product.ParseCategory(id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownCategory, err)
		}
		out = append(out, cat)
	}
	return out, nil
}

func (s *Service) discoverer(cat config.CategorySource, sess *CrawlSession) discover.Discoverer {
	if !cat.Rendered() {
		return discover.NewStatic(s.catalog.BaseURL, s.catalog.DetailPattern, s.catalog.ListPattern, s.opts.UserAgent, s.log.With("static")).
			WithWait(sess.limiter.Wait)
	}
	page := rateLimitedPage{Page: sess.Page, session: sess}
	return discover.NewBrowser(page, s.catalog.BaseURL, s.catalog.DetailPattern, s.catalog.ListPattern, s.log.With("discover"))
}

// crawlCategory pages through one listing until a page yields no links. A
// discovery error ends this category only.
func (s *Service) crawlCategory(ctx context.Context, log *logger.Logger, sess *CrawlSession, cat config.CategorySource, req Request) error {
	disc := s.discoverer(cat, sess)
	visited := map[string]bool{}
	for page := req.StartPage; req.MaxPages <= 0 || page < req.StartPage+req.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sess.State = StateDiscovering
		listing := s.catalog.ListingURL(cat, page)
		links, err := disc.Discover(ctx, listing)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sess.Stats.Failed++
			log.Warn().Err(err).Int("page", page).Msg("listing failed, moving to next category")
			return nil
		}
		sess.Stats.Pages++
		if len(links) == 0 {
			log.Info().Int("page", page).Msg("no links, category complete")
			return nil
		}

		fresh := 0
		for _, link := range links {
			if visited[link.URL] {
				continue
			}
			fresh++
			visited[link.URL] = true
			sess.Stats.Discovered++
			if key, seen := sess.keys[link.URL]; seen {
				// already extracted under an earlier category this run
				if err := s.tagItem(log, sess, cat, link, key); err != nil {
					return err
				}
				continue
			}
			if err := s.processItem(ctx, log, sess, cat, link, req.NoCache); err != nil {
				return err
			}
			if err := s.opts.Backoff.Wait(ctx, 0); err != nil {
				return err
			}
		}
		if fresh == 0 {
			log.Info().Int("page", page).Msg("page repeats earlier links, category complete")
			return nil
		}
		s.progress(ctx, log, sess)
	}
	return nil
}

func (s *Service) progress(ctx context.Context, log *logger.Logger, sess *CrawlSession) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.Progress(ctx, sess.RunID, sess.State, sess.Stats); err != nil {
		log.LogDebugf("progress: %v", err)
	}
}

// processItem handles one detail page. Only persistence failures and
// cancellation are returned.
func (s *Service) processItem(ctx context.Context, log *logger.Logger, sess *CrawlSession, cat config.CategorySource, link product.Link, noCache bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			sess.Stats.Failed++
			log.Error().Str("url", link.URL).Interface("panic", r).Msg("item failed")
			err = nil
		}
	}()

	sess.State = StateExtractingItem
	html, err := s.load(ctx, log, sess, link.URL, noCache)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sess.Stats.Failed++
		log.Warn().Str("url", link.URL).Err(err).Msg("detail page failed, skipping")
		return nil
	}

	res, err := s.extract.FromHTML(html, link.URL)
	if err != nil {
		if errors.Is(err, extract.ErrMissingName) {
			sess.Stats.Rejected++
		} else {
			sess.Stats.Failed++
		}
		log.Warn().Str("url", link.URL).Err(err).Msg("extraction rejected")
		return nil
	}
	if res.Fields.Name == "" {
		res.Fields.Name = link.Name
	}

	rec, rep := s.normalize.Normalize(res.Fields, product.Category(cat.ID))
	if rep.Ambiguous() {
		sess.Stats.Ambiguous++
	}

	sess.State = StateReconciling
	d, err := sess.Index.Reconcile(rec)
	if err != nil {
		if errors.Is(err, reconcile.ErrKeyCollision) {
			sess.Stats.Collisions++
		} else {
			sess.Stats.Failed++
		}
		log.Warn().Str("url", link.URL).Err(err).Msg("reconcile failed, skipping")
		return nil
	}
	sess.keys[link.URL] = d.Key
	return s.persist(log, sess, d)
}

// tagItem adds cat to the collections of a record already reconciled this run,
// without loading its page again.
func (s *Service) tagItem(log *logger.Logger, sess *CrawlSession, cat config.CategorySource, link product.Link, key string) error {
	sess.State = StateReconciling
	d, err := sess.Index.Reconcile(product.Record{BusinessKey: key, URL: link.URL, Collections: []string{cat.ID}})
	if err != nil {
		if errors.Is(err, reconcile.ErrKeyCollision) {
			sess.Stats.Collisions++
		} else {
			sess.Stats.Failed++
		}
		log.Warn().Str("url", link.URL).Err(err).Msg("reconcile failed, skipping")
		return nil
	}
	return s.persist(log, sess, d)
}

// persist applies a decision and writes the partition it changed.
func (s *Service) persist(log *logger.Logger, sess *CrawlSession, d reconcile.Decision) error {
	if d.Action == reconcile.ActionSkip {
		sess.Stats.Skipped++
		log.Debug().Str("key", d.Key).Msg("unchanged")
		return nil
	}

	sess.State = StatePersisting
	sess.Index.Apply(d)
	if err := s.store.Write(d.Partition, sess.Index.Partition(d.Partition)); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	sess.Stats.Writes++
	if d.Action == reconcile.ActionInsert {
		sess.Stats.Inserted++
	} else {
		sess.Stats.Updated++
		log.Debug().Str("key", d.Key).Msg(d.Diff)
	}
	log.Success().
		Str("action", string(d.Action)).
		Str("key", d.Key).
		Str("partition", string(d.Partition)).
		Str("name", d.Record.Name).
		Msg("record saved")
	return nil
}

// load returns detail HTML from the cache or the browser, retrying retryable
// navigation errors with growing delays.
func (s *Service) load(ctx context.Context, log *logger.Logger, sess *CrawlSession, url string, noCache bool) (string, error) {
	if s.cache != nil && !noCache {
		if html, ok := s.cache.GetPage(ctx, url); ok {
			sess.Stats.CacheHits++
			return html, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= s.opts.Backoff.Retries; attempt++ {
		if attempt > 0 {
			log.Debug().Str("url", url).Int("attempt", attempt+1).Err(lastErr).Msg("retrying")
			if err := s.opts.Backoff.Wait(ctx, attempt); err != nil {
				return "", err
			}
		}
		if err := sess.navigate(ctx, url); err != nil {
			lastErr = err
			if ctx.Err() != nil || !browser.IsRetryable(err) {
				return "", err
			}
			continue
		}
		if err := sess.Page.WaitFor("h1", s.opts.WaitTimeout); err != nil {
			log.Debug().Str("url", url).Msg("no h1 before timeout")
		}
		html, err := sess.Page.Content()
		if err != nil {
			lastErr = err
			continue
		}
		if s.cache != nil {
			s.cache.SetPage(ctx, url, html)
		}
		return html, nil
	}
	return "", lastErr
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
