// Package markdown renders the product area of a detail page as markdown, so
// an operator can see what the extractor was given.
package markdown

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var (
	contentSelectors = []string{".product-detail", "main", "[role=\"main\"]", "#content", "#main"}
	noise            = "script, style, noscript, nav, header, footer, aside, form, iframe, svg, button, input"
	noiseKeywords    = []string{"cookie", "consent", "navbar", "menu-", "breadcrumb", "sidebar", "modal", "popup", "share"}
	blankRuns        = regexp.MustCompile(`\n{3,}`)
)

// FromHTML converts the page's main content. It falls back to <body> when no
// content container is present.
func FromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return FromDocument(doc)
}

func FromDocument(doc *goquery.Document) (string, error) {
	sel := content(doc).Clone()
	sel.Find(noise).Remove()
	sel.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		lower := strings.ToLower(class + " " + id)
		for _, kw := range noiseKeywords {
			if strings.Contains(lower, kw) {
				s.Remove()
				return
			}
		}
	})

	body, err := sel.Html()
	if err != nil {
		return "", err
	}
	out, err := md.NewConverter("", true, nil).ConvertString(body)
	if err != nil {
		return "", err
	}
	return Tidy(out), nil
}

func content(doc *goquery.Document) *goquery.Selection {
	for _, s := range contentSelectors {
		if found := doc.Find(s); found.Length() > 0 {
			return found.First()
		}
	}
	return doc.Find("body")
}

// Tidy trims every line, drops consecutive duplicate lines and collapses
// blank runs.
func Tidy(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	prev := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" && line == prev {
			continue
		}
		out = append(out, line)
		prev = line
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(out, "\n"), "\n\n"))
}
