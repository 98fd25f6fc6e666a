// Package discover finds product detail links on category listing pages.
package discover

import (
	"context"
	"fmt"
	"time"

	"oilcatalog/internal/core/product"
	"oilcatalog/internal/logger"
	"oilcatalog/internal/platform/browser"
)

// Discoverer returns the detail links of one listing page. An empty result
// means the category has no further pages.
type Discoverer interface {
	Discover(ctx context.Context, listingURL string) ([]product.Link, error)
}

// productGrid is waited for before reading links; its absence is not an error.
const productGrid = "a[href*='/p/']"

const anchorScript = `() => Array.from(document.querySelectorAll('a[href]')).map(a => {
	const img = a.querySelector('img[alt]');
	return {
		href: a.href || a.getAttribute('href') || '',
		text: (a.innerText || a.textContent || '').trim(),
		title: a.getAttribute('title') || '',
		alt: img ? img.getAttribute('alt') : ''
	};
})`

// Browser discovers links from the rendered DOM.
type Browser struct {
	page   browser.Page
	filter filter
	wait   time.Duration
	log    *logger.Logger
}

func NewBrowser(page browser.Page, baseURL, detailPattern, listPattern string, log *logger.Logger) *Browser {
	if log == nil {
		log = logger.New("Discover")
	}
	return &Browser{
		page:   page,
		filter: newFilter(baseURL, detailPattern, listPattern),
		wait:   10 * time.Second,
		log:    log,
	}
}

func (b *Browser) Discover(ctx context.Context, listingURL string) ([]product.Link, error) {
	if err := b.page.Navigate(ctx, listingURL); err != nil {
		return nil, fmt.Errorf("listing %s: %w", listingURL, err)
	}
	if err := b.page.WaitFor(productGrid, b.wait); err != nil {
		b.log.Debug().Str("url", listingURL).Err(err).Msg("product grid not found")
	}
	if err := b.page.Scroll(ctx); err != nil {
		b.log.Debug().Str("url", listingURL).Err(err).Msg("scroll failed")
	}

	pageURL := b.page.URL()
	if pageURL == "" {
		pageURL = listingURL
	}
	links := b.filter.collect(pageURL, b.anchorsFromDOM())
	source := "dom"
	if len(links) == 0 {
		html, err := b.page.Content()
		if err != nil {
			return nil, fmt.Errorf("listing content %s: %w", listingURL, err)
		}
		anchors, err := anchorsFromHTML(html)
		if err != nil {
			return nil, fmt.Errorf("parse listing %s: %w", listingURL, err)
		}
		links = b.filter.collect(pageURL, anchors)
		source = "html"
	}

	b.log.Info().Str("url", listingURL).Str("source", source).Int("links", len(links)).Msg("listing discovered")
	return links, nil
}

func (b *Browser) anchorsFromDOM() []anchor {
	result, err := b.page.Evaluate(anchorScript)
	if err != nil {
		b.log.Debug().Err(err).Msg("evaluate anchors failed")
		return nil
	}
	arr, ok := result.([]any)
	if !ok {
		return nil
	}
	out := make([]anchor, 0, len(arr))
	for _, v := range arr {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, anchor{
			Href:  str(m["href"]),
			Text:  str(m["text"]),
			Title: str(m["title"]),
			Alt:   str(m["alt"]),
		})
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
