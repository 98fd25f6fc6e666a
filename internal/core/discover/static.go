package discover

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly"

	"oilcatalog/internal/core/product"
	"oilcatalog/internal/logger"
)

// Static discovers links from server-rendered listings without a browser.
type Static struct {
	filter    filter
	userAgent string
	delay     time.Duration
	wait      func(context.Context) error
	log       *logger.Logger
}

func NewStatic(baseURL, detailPattern, listPattern, userAgent string, log *logger.Logger) *Static {
	if log == nil {
		log = logger.New("Discover")
	}
	return &Static{
		filter:    newFilter(baseURL, detailPattern, listPattern),
		userAgent: userAgent,
		delay:     500 * time.Millisecond,
		log:       log,
	}
}

// WithWait makes every listing request wait on fn first, so static fetches
// share the session's rate limit with browser navigation.
func (s *Static) WithWait(fn func(context.Context) error) *Static {
	s.wait = fn
	return s
}

func (s *Static) Discover(ctx context.Context, listingURL string) ([]product.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := url.Parse(listingURL); err != nil {
		return nil, fmt.Errorf("listing url: %w", err)
	}

	var (
		mu      sync.Mutex
		anchors []anchor
		pageURL = listingURL
		failed  error
	)
	c := colly.NewCollector(colly.MaxDepth(1))
	if s.userAgent != "" {
		c.UserAgent = s.userAgent
	}
	c.SetRequestTimeout(30 * time.Second)
	c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, RandomDelay: s.delay})

	c.OnRequest(func(r *colly.Request) {
		if s.wait != nil {
			if err := s.wait(ctx); err != nil {
				mu.Lock()
				failed = fmt.Errorf("listing %s: %w", listingURL, err)
				mu.Unlock()
				r.Abort()
				return
			}
		}
		select {
		case <-ctx.Done():
			r.Abort()
		default:
			r.Headers.Set("Accept-Language", "zh-TW,zh;q=0.9")
		}
	})
	c.OnResponse(func(r *colly.Response) {
		mu.Lock()
		pageURL = r.Request.URL.String()
		mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		failed = fmt.Errorf("listing %s: status %d: %w", listingURL, r.StatusCode, err)
		mu.Unlock()
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		mu.Lock()
		anchors = append(anchors, anchorFromSelection(e.DOM))
		mu.Unlock()
	})

	if err := c.Visit(listingURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", listingURL, err)
	}
	c.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed != nil {
		return nil, failed
	}

	links := s.filter.collect(pageURL, anchors)
	s.log.Info().Str("url", listingURL).Str("source", "static").Int("links", len(links)).Msg("listing discovered")
	return links, nil
}
