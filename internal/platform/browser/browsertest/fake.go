// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oilcatalog/internal/platform/browser"
)

// Page serves canned HTML per URL. Errors maps a URL to the error its
// navigation returns; Evaluate results are looked up by the current URL.
type Page struct {
	mu       sync.Mutex
	HTML     map[string]string
	Errors   map[string]error
	Eval     map[string]any
	current  string
	Visited  []string
	Closed   bool
	Failures map[string]int
}

var _ browser.Page = (*Page)(nil)

func New() *Page {
	return &Page{
		HTML:     map[string]string{},
		Errors:   map[string]error{},
		Eval:     map[string]any{},
		Failures: map[string]int{},
	}
}

// FailTimes makes the next n navigations to url fail with err.
func (p *Page) FailTimes(url string, n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Failures[url] = n
	p.Errors[url] = err
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Visited = append(p.Visited, url)
	if err, ok := p.Errors[url]; ok {
		if n, limited := p.Failures[url]; !limited || n > 0 {
			if limited {
				p.Failures[url] = n - 1
			}
			return err
		}
	}
	if _, ok := p.HTML[url]; !ok {
		return &browser.StatusError{URL: url, Code: 404}
	}
	p.current = url
	return nil
}

func (p *Page) WaitFor(string, time.Duration) error { return nil }

func (p *Page) Evaluate(string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Eval[p.current], nil
}

func (p *Page) Scroll(context.Context) error { return nil }

func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return "", fmt.Errorf("no page loaded")
	}
	return p.HTML[p.current], nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Count returns how many times url was navigated to.
func (p *Page) Count(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, v := range p.Visited {
		if v == url {
			n++
		}
	}
	return n
}
