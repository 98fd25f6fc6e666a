// Package browser drives a headless Chromium through playwright.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"oilcatalog/internal/logger"
)

var ErrNotStarted = errors.New("browser not started")

// StatusError is a navigation that completed with an HTTP error status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("%s: status %d", e.URL, e.Code) }

// Page is the slice of a browser tab the crawler needs. It is satisfied by the
// playwright-backed page and by test fakes.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(selector string, timeout time.Duration) error
	Evaluate(script string) (any, error)
	Scroll(ctx context.Context) error
	Content() (string, error)
	URL() string
	Close() error
}

type Options struct {
	Headless    bool
	NavTimeout  time.Duration
	SettleDelay time.Duration
	Strategy    HeaderStrategy
}

func (o Options) withDefaults() Options {
	if o.NavTimeout <= 0 {
		o.NavTimeout = 30 * time.Second
	}
	if o.Strategy == "" {
		o.Strategy = StrategyDesktop
	}
	return o
}

// Driver owns the playwright process and one browser context.
type Driver struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	opts    Options
	log     *logger.Logger
}

// Launch starts playwright and Chromium. Failure here is fatal for a crawl run.
func Launch(opts Options, log *logger.Logger) (*Driver, error) {
	if log == nil {
		log = logger.New("Browser")
	}
	opts = opts.withDefaults()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright run: %w", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--disable-default-apps",
			"--disable-extensions",
			"--lang=zh-TW",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch: %w", err)
	}

	profile := Profile(opts.Strategy)
	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(profile.UserAgent),
		ExtraHttpHeaders: profile.Headers(),
		Locale:           playwright.String("zh-TW"),
		IsMobile:         playwright.Bool(profile.Mobile),
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("browser context: %w", err)
	}

	log.Info().Bool("headless", opts.Headless).Str("strategy", string(opts.Strategy)).Msg("browser started")
	return &Driver{pw: pw, browser: b, bctx: bctx, opts: opts, log: log}, nil
}

// NewPage opens a tab in the shared context.
func (d *Driver) NewPage() (Page, error) {
	if d == nil {
		return nil, ErrNotStarted
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bctx == nil {
		return nil, ErrNotStarted
	}
	p, err := d.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &livePage{page: p, opts: d.opts, log: d.log}, nil
}

func (d *Driver) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	if d.bctx != nil {
		errs = append(errs, d.bctx.Close())
		d.bctx = nil
	}
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
		d.browser = nil
	}
	if d.pw != nil {
		errs = append(errs, d.pw.Stop())
		d.pw = nil
	}
	return errors.Join(errs...)
}

type livePage struct {
	page playwright.Page
	opts Options
	log  *logger.Logger
}

// Navigate loads url, falling back from DOMContentLoaded to a full load with a
// longer timeout, then lets client-side rendering settle.
func (p *livePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := float64(p.opts.NavTimeout.Milliseconds())
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(timeout),
	})
	if err != nil {
		p.log.Debug().Str("url", url).Err(err).Msg("domcontentloaded failed, retrying with full load")
		resp, err = p.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   playwright.Float(timeout * 2),
		})
		if err != nil {
			return fmt.Errorf("goto %s: %w", url, err)
		}
	}
	if resp != nil && resp.Status() >= 400 {
		return &StatusError{URL: url, Code: resp.Status()}
	}

	// best effort: listing grids and detail tabs render after the initial load
	_ = p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(5000),
	})
	if p.opts.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.opts.SettleDelay):
		}
	}
	return nil
}

func (p *livePage) WaitFor(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *livePage) Evaluate(script string) (any, error) {
	return p.page.Evaluate(script)
}

const (
	minScrolls  = 2
	maxScrolls  = 8
	scrollPause = 400 * time.Millisecond
)

const scrollScript = `() => {
	window.scrollBy(0, window.innerHeight);
	return window.innerHeight + window.scrollY >= document.body.scrollHeight - 2;
}`

// Scroll walks to the bottom of the page in steps so lazy grids load.
func (p *livePage) Scroll(ctx context.Context) error {
	return scrollSteps(ctx, minScrolls, maxScrolls, scrollPause, func() (bool, error) {
		done, err := p.page.Evaluate(scrollScript)
		if err != nil {
			return false, fmt.Errorf("scroll: %w", err)
		}
		b, _ := done.(bool)
		return b, nil
	})
}

// scrollSteps runs step at least least times and at most most times, pausing
// after every step. It stops early once step reports the bottom.
func scrollSteps(ctx context.Context, least, most int, pause time.Duration, step func() (bool, error)) error {
	for i := 0; i < most; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		bottom, err := step()
		if err != nil {
			return err
		}
		if err := sleep(ctx, pause); err != nil {
			return err
		}
		if bottom && i+1 >= least {
			return nil
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *livePage) Content() (string, error) { return p.page.Content() }
func (p *livePage) URL() string              { return p.page.URL() }
func (p *livePage) Close() error             { return p.page.Close() }

// IsRetryable reports whether a navigation error is worth another attempt:
// rate limiting, gateway errors, resets and timeouts. 4xx other than 429 are final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNotStarted) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	es := strings.ToLower(err.Error())
	for _, marker := range []string{
		"too many requests", "rate limit", "service unavailable", "bad gateway",
		"gateway timeout", "connection reset", "connection refused", "timeout",
		"net::err_",
	} {
		if strings.Contains(es, marker) {
			return true
		}
	}
	return false
}
