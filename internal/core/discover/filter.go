package discover

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"oilcatalog/internal/core/product"
)

// anchor is one raw link found on a listing page.
type anchor struct {
	Href  string
	Text  string
	Title string
	Alt   string
}

// filter keeps same-site detail links and drops listing, cart and anchor links.
type filter struct {
	host   string
	detail string
	list   string
}

func newFilter(baseURL, detail, list string) filter {
	host := ""
	if u, err := url.Parse(baseURL); err == nil {
		host = strings.TrimPrefix(u.Hostname(), "www.")
	}
	return filter{host: host, detail: detail, list: list}
}

// canonical strips query and fragment so one product has one URL.
func (f filter) canonical(pageURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if f.host != "" && strings.TrimPrefix(u.Hostname(), "www.") != f.host {
		return "", false
	}
	if !strings.Contains(u.Path, f.detail) || (f.list != "" && strings.Contains(u.Path, f.list)) {
		return "", false
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), true
}

// collect turns anchors into links: detail pages only, non-empty names, first
// occurrence wins. Product cards often repeat the link on image and title, so a
// later anchor may supply the name an earlier one lacked.
func (f filter) collect(pageURL string, anchors []anchor) []product.Link {
	index := map[string]int{}
	var links []product.Link
	for _, a := range anchors {
		u, ok := f.canonical(pageURL, a.Href)
		if !ok {
			continue
		}
		name := anchorName(a)
		if i, seen := index[u]; seen {
			if links[i].Name == "" {
				links[i].Name = name
			}
			continue
		}
		index[u] = len(links)
		links = append(links, product.Link{Name: name, URL: u})
	}
	out := links[:0]
	for _, l := range links {
		if l.Name != "" {
			out = append(out, l)
		}
	}
	return out
}

func anchorName(a anchor) string {
	for _, v := range []string{a.Text, a.Title, a.Alt} {
		if v = strings.Join(strings.Fields(v), " "); v != "" {
			return v
		}
	}
	return ""
}

// anchorsFromHTML is the static fallback when the live DOM yields nothing.
func anchorsFromHTML(html string) ([]anchor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var out []anchor
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		out = append(out, anchorFromSelection(s))
	})
	return out, nil
}

func anchorFromSelection(s *goquery.Selection) anchor {
	href, _ := s.Attr("href")
	title, _ := s.Attr("title")
	alt, _ := s.Find("img[alt]").First().Attr("alt")
	return anchor{Href: href, Text: s.Text(), Title: title, Alt: alt}
}
