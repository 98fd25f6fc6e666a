package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const labelSelector = "h1, h2, h3, h4, h5, h6, dt, th, strong, b, label, .title, .section-title, .tab-title, .accordion-title"

var (
	headingTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true}

	// siblings that never carry field content
	decorativeTags    = map[string]bool{"hr": true, "br": true, "img": true, "picture": true, "svg": true, "script": true, "style": true, "noscript": true, "figure": true, "button": true, "i": true}
	decorativeClasses = []string{"divider", "spacer", "separator", "icon", "decor", "line"}

	// layout classes of the narrow left column on detail pages
	narrowColumnClasses = []string{"col-sm-4", "col-md-4", "col-lg-4", "col-sm-5", "col-md-5", "col-lg-5", "left", "left-col", "left-column", "col-left", "column-left", "sidebar", "narrow", "product-specs"}

	whitespace = regexp.MustCompile(`\s+`)
	labelTrim  = "：:　 \t\n"
)

func tagName(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return goquery.NodeName(s)
}

// text returns the whitespace-collapsed text of a selection.
func text(s *goquery.Selection) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s.Text(), " "))
}

// blockText keeps line breaks between block children and <br>s so that
// multi-line containers survive for list splitting.
func blockText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeBlockText(&b, n)
	}
	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(whitespace.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

var blockTags = map[string]bool{"p": true, "div": true, "li": true, "br": true, "tr": true, "section": true, "dd": true, "dt": true, "ul": true, "ol": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true}

func writeBlockText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" || n.Data == "noscript" {
			return
		}
		if blockTags[n.Data] {
			b.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeBlockText(b, c)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteString("\n")
	}
}

// flatten joins every visible text node with a space, so adjacent cells like
// "建議售價" and "NT$1,460" stay separable by regular expressions.
func flatten(s *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

func nodeText(n *html.Node) string {
	return text(goquery.NewDocumentFromNode(n).Selection)
}

func isDecorative(s *goquery.Selection) bool {
	if decorativeTags[tagName(s)] {
		return true
	}
	class, _ := s.Attr("class")
	class = strings.ToLower(class)
	for _, c := range decorativeClasses {
		if strings.Contains(class, c) && text(s) == "" {
			return true
		}
	}
	return false
}

// inNarrowColumn reports whether an ancestor carries a left/narrow column class.
func inNarrowColumn(s *goquery.Selection) bool {
	narrow := false
	s.ParentsFiltered("[class]").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		class, _ := p.Attr("class")
		for _, tok := range strings.Fields(strings.ToLower(class)) {
			for _, c := range narrowColumnClasses {
				if tok == c {
					narrow = true
					return false
				}
			}
		}
		return true
	})
	return narrow
}

func listItems(s *goquery.Selection) []string {
	var items []string
	s.Find("li").Each(func(_ int, li *goquery.Selection) {
		if t := text(li); t != "" {
			items = append(items, t)
		}
	})
	return items
}

func trimLabel(s string) string {
	return strings.Trim(strings.TrimSpace(s), labelTrim)
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func hasLatin(s string) bool {
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// absolute resolves href against the page URL.
func absolute(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
