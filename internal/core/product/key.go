package product

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SlugPrefix keeps URL-derived keys from colliding with numeric product codes.
const SlugPrefix = "slug:"

var codeCleaner = regexp.MustCompile(`[\s\-]+`)

// NormalizeCode canonicalizes a scraped product code ("6020 3880" -> "60203880").
func NormalizeCode(code string) string {
	return strings.ToUpper(codeCleaner.ReplaceAllString(strings.TrimSpace(code), ""))
}

// SlugFromURL returns the detail slug of a product URL: the segment after "/p/",
// or the last path segment when the pattern is absent.
func SlugFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Path == "" {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(p, "/p/"); i >= 0 {
		p = p[i+len("/p/"):]
		if j := strings.Index(p, "/"); j >= 0 {
			p = p[:j]
		}
	} else {
		p = path.Base(p)
	}
	if p == "." || p == "/" {
		return ""
	}
	if dec, err := url.PathUnescape(p); err == nil {
		p = dec
	}
	return strings.ToLower(strings.TrimSpace(p))
}

// SlugKey is the fallback business key for a URL.
func SlugKey(rawURL string) string {
	slug := SlugFromURL(rawURL)
	if slug == "" {
		return ""
	}
	return SlugPrefix + slug
}

// BusinessKey prefers the product code and falls back to the URL slug.
func BusinessKey(code, rawURL string) string {
	if c := NormalizeCode(code); c != "" {
		return c
	}
	return SlugKey(rawURL)
}

// NameFromSlug is the last-resort display name ("deep-blue-rub" -> "Deep Blue Rub").
func NameFromSlug(rawURL string) string {
	slug := SlugFromURL(rawURL)
	if slug == "" {
		return ""
	}
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}
