package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"oilcatalog/internal/core/product"
)

// Page is a parsed detail page. Strategies only read from it.
type Page struct {
	doc  *goquery.Document
	url  string
	flat string
}

func NewPage(doc *goquery.Document, pageURL string) *Page {
	return &Page{doc: doc, url: pageURL, flat: flatten(doc.Find("body"))}
}

// Strategy is one named way of recovering a field value.
type Strategy[T any] struct {
	Name string
	Run  func(p *Page) (T, bool)
}

// firstOf evaluates strategies in order and returns the first success.
func firstOf[T any](p *Page, strategies []Strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.Run(p); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

var (
	binomial     = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+(?:[a-z]+|x|×|spp\.|var\.|ssp\.)){1,3}$`)
	siteSuffixes = regexp.MustCompile(`\s*[|｜\-–]\s*(?:dōTERRA|doTERRA|d[oō]TERRA.*|多特瑞.*)$`)
)

func selectorText(sel string) Strategy[string] {
	return Strategy[string]{
		Name: "selector " + sel,
		Run: func(p *Page) (string, bool) {
			var out string
			p.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				out = text(s)
				return out == ""
			})
			return out, out != ""
		},
	}
}

func metaContent(name string) Strategy[string] {
	return Strategy[string]{
		Name: "meta " + name,
		Run: func(p *Page) (string, bool) {
			sel := p.doc.Find(`meta[property="` + name + `"], meta[name="` + name + `"]`).First()
			v, _ := sel.Attr("content")
			v = strings.TrimSpace(v)
			return v, v != ""
		},
	}
}

func withoutSiteSuffix(s Strategy[string]) Strategy[string] {
	return Strategy[string]{
		Name: s.Name,
		Run: func(p *Page) (string, bool) {
			v, ok := s.Run(p)
			if !ok {
				return "", false
			}
			v = strings.TrimSpace(siteSuffixes.ReplaceAllString(v, ""))
			return v, v != ""
		},
	}
}

// sectionList is the labelled-section strategy: locate the heading, pick the
// walk for its column, fall back to the parent walk and the text-node walk.
func sectionList(field string) Strategy[product.RawList] {
	return Strategy[product.RawList]{
		Name: "section " + field,
		Run: func(p *Page) (product.RawList, bool) {
			for _, label := range p.locate(field) {
				if v, ok := inlineValue(label, field); ok {
					return product.RawList{Text: v}, true
				}
				walk := walkMain
				if inNarrowColumn(label) {
					walk = walkAdjacent
				}
				if rl, ok := walk(label); ok {
					return rl, true
				}
				if rl, ok := walkParent(label); ok {
					return rl, true
				}
			}
			return product.RawList{}, false
		},
	}
}

func sectionText(field string) Strategy[string] {
	s := sectionList(field)
	return Strategy[string]{
		Name: s.Name,
		Run: func(p *Page) (string, bool) {
			rl, ok := s.Run(p)
			if !ok {
				return "", false
			}
			return joinRaw(rl), true
		},
	}
}

// containerList reads a field from a dedicated block, e.g. ".product-benefits".
func containerList(sel string) Strategy[product.RawList] {
	return Strategy[product.RawList]{
		Name: "container " + sel,
		Run: func(p *Page) (product.RawList, bool) {
			c := p.doc.Find(sel).First()
			if c.Length() == 0 {
				return product.RawList{}, false
			}
			// drop the block's own title
			c = c.Clone()
			c.Find(labelSelector).Each(func(_ int, s *goquery.Selection) {
				if labelOf(s) != "" {
					s.Remove()
				}
			})
			return contentOf(c)
		},
	}
}

func containerText(sel string) Strategy[string] {
	s := containerList(sel)
	return Strategy[string]{
		Name: s.Name,
		Run: func(p *Page) (string, bool) {
			rl, ok := s.Run(p)
			if !ok {
				return "", false
			}
			return joinRaw(rl), true
		},
	}
}

func joinRaw(rl product.RawList) string {
	if len(rl.Items) > 0 {
		return strings.Join(rl.Items, "\n")
	}
	return rl.Text
}

// descriptionLabelSibling covers templates where the description label is
// followed by an empty element and the text lives in that element's sibling.
var descriptionLabelSibling = Strategy[string]{
	Name: "description label sibling",
	Run: func(p *Page) (string, bool) {
		for _, label := range p.locate(FieldDescription) {
			first := label.Next()
			if first.Length() == 0 || text(first) != "" {
				continue
			}
			if t := blockText(first.Next()); t != "" {
				return t, true
			}
		}
		return "", false
	},
}

// latinSiblingOfTitle picks the English name printed right under the product title.
var latinSiblingOfTitle = Strategy[string]{
	Name: "latin sibling of h1",
	Run: func(p *Page) (string, bool) {
		h1 := p.doc.Find("h1").First()
		for sib := h1.Next(); sib.Length() > 0; sib = sib.Next() {
			t := text(sib)
			if t == "" {
				continue
			}
			if hasLatin(t) && !hasCJK(t) && !binomial.MatchString(t) {
				return t, true
			}
			break
		}
		return "", false
	},
}

// latinInTitle splits "薰衣草精油 Lavender" style titles.
var latinInTitle = Strategy[string]{
	Name: "latin part of h1",
	Run: func(p *Page) (string, bool) {
		t := text(p.doc.Find("h1").First())
		if !hasCJK(t) || !hasLatin(t) {
			return "", false
		}
		i := strings.IndexFunc(t, func(r rune) bool { return r < 128 && (r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') })
		latin := strings.TrimSpace(t[i:])
		if hasCJK(latin) {
			return "", false
		}
		return latin, latin != ""
	},
}

var italicBinomial = Strategy[string]{
	Name: "italic binomial",
	Run: func(p *Page) (string, bool) {
		var out string
		p.doc.Find("i, em, .scientific, .latin").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := text(s); binomial.MatchString(t) {
				out = t
				return false
			}
			return true
		})
		return out, out != ""
	},
}

func imageAttr(sel string) Strategy[string] {
	return Strategy[string]{
		Name: "image " + sel,
		Run: func(p *Page) (string, bool) {
			img := p.doc.Find(sel).First()
			for _, attr := range []string{"data-src", "src", "content", "href"} {
				if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
					return absolute(p.url, v), true
				}
			}
			return "", false
		},
	}
}

var (
	nameStrategies = []Strategy[string]{
		selectorText(`[itemprop="name"]`),
		selectorText("h1.product-name, h1.product-title, .product-name h1, .product-title h1"),
		withoutSiteSuffix(selectorText("h1")),
		withoutSiteSuffix(metaContent("og:title")),
		withoutSiteSuffix(selectorText("title")),
	}
	englishNameStrategies = []Strategy[string]{
		selectorText(".english-name, .product-name-en, .name-en, [lang=en].product-name"),
		latinSiblingOfTitle,
		latinInTitle,
	}
	scientificNameStrategies = []Strategy[string]{
		selectorText(".scientific-name, .latin-name, .botanical-name"),
		italicBinomial,
	}
	imageStrategies = []Strategy[string]{
		imageAttr(`meta[property="og:image"]`),
		imageAttr(".product-image img, .product-gallery img, .main-image img"),
		imageAttr(`img[src*="product"], img[data-src*="product"]`),
	}
	descriptionStrategies = []Strategy[string]{
		sectionText(FieldDescription),
		descriptionLabelSibling,
		containerText(".product-description, #product-description, [itemprop=description]"),
		metaContent("og:description"),
		metaContent("description"),
	}
	introductionStrategies = []Strategy[string]{
		sectionText(FieldProductIntroduction),
		containerText(".product-introduction, #product-introduction, .product-intro"),
	}
	applicationStrategies = []Strategy[string]{
		sectionText(FieldApplicationGuide),
		containerText(".application-guide, .product-uses"),
	}
	aromaStrategies      = []Strategy[string]{sectionText(FieldAromaDescription)}
	extractionStrategies = []Strategy[string]{sectionText(FieldExtractionMethod)}
	plantPartStrategies  = []Strategy[string]{sectionText(FieldPlantPart)}

	benefitsStrategies = []Strategy[product.RawList]{
		sectionList(FieldMainBenefits),
		containerList(".product-benefits, .primary-benefits, .benefits"),
	}
	ingredientsStrategies = []Strategy[product.RawList]{
		sectionList(FieldMainIngredients),
		containerList(".product-ingredients, .ingredients, .constituents"),
	}
	usageStrategies = []Strategy[product.RawList]{
		sectionList(FieldUsageInstructions),
		containerList(".product-usage, .directions, .how-to-use"),
	}
	cautionsStrategies = []Strategy[product.RawList]{
		sectionList(FieldCautions),
		containerList(".product-cautions, .cautions, .warnings"),
	}
)
