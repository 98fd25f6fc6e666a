package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"oilcatalog/internal/core/product"
)

// Field names double as section identifiers and trace keys.
const (
	FieldName                = "name"
	FieldEnglishName         = "englishName"
	FieldScientificName      = "scientificName"
	FieldImageURL            = "imageUrl"
	FieldDescription         = "description"
	FieldProductIntroduction = "productIntroduction"
	FieldApplicationGuide    = "applicationGuide"
	FieldAromaDescription    = "aromaDescription"
	FieldExtractionMethod    = "extractionMethod"
	FieldPlantPart           = "plantPart"
	FieldMainBenefits        = "mainBenefits"
	FieldMainIngredients     = "mainIngredients"
	FieldUsageInstructions   = "usageInstructions"
	FieldCautions            = "cautions"
	FieldProductCode         = "productCode"
	FieldRetailPrice         = "retailPrice"
	FieldMemberPrice         = "memberPrice"
	FieldPVPoints            = "pvPoints"
	FieldVolume              = "volume"
)

// maxLabelRunes bounds substring matches so body text is never taken for a heading.
const maxLabelRunes = 24

type labelSet struct {
	field  string
	titles []string
}

// vocabulary lists the section titles used on the site per labelled field.
// Order is the final tie-break in classifyLabel.
var vocabulary = []labelSet{
	{FieldDescription, []string{"產品描述", "產品說明", "商品描述", "商品說明", "Description", "Product Description"}},
	{FieldProductIntroduction, []string{"產品介紹", "商品介紹", "Product Introduction", "Introduction"}},
	{FieldApplicationGuide, []string{"應用指南", "應用方式", "應用建議", "Uses", "Application Guide"}},
	{FieldMainBenefits, []string{"主要功效", "主要益處", "主要好處", "產品功效", "功效", "Primary Benefits", "Main Benefits"}},
	{FieldUsageInstructions, []string{"使用方法", "使用說明", "使用建議", "建議用法", "用法", "Directions for Use", "Directions", "How to Use"}},
	{FieldCautions, []string{"注意事項", "警告標示", "警語", "Cautions", "Warnings"}},
	{FieldAromaDescription, []string{"香味描述", "香氣描述", "香氣", "香味", "Aromatic Description"}},
	{FieldExtractionMethod, []string{"萃取方法", "萃取方式", "Extraction Method"}},
	{FieldPlantPart, []string{"萃取部位", "植物部位", "Plant Part"}},
	{FieldMainIngredients, []string{"主要成分", "主要成份", "主要化學成分", "成分", "成份", "Main Constituents", "Ingredients"}},
}

// classifyLabel assigns a heading text to the field whose matching title is the
// longest, so "香味描述" belongs to aroma and never to description. Equal
// lengths go to the title that starts earlier in the heading.
func classifyLabel(raw string) (field string, exact bool) {
	t := strings.ToLower(trimLabel(raw))
	if t == "" || utf8.RuneCountInString(t) > maxLabelRunes {
		return "", false
	}
	best, bestAt := 0, len(t)
	for _, set := range vocabulary {
		for _, title := range set.titles {
			lt := strings.ToLower(title)
			if t == lt {
				return set.field, true
			}
			at := strings.Index(t, lt)
			if at < 0 {
				continue
			}
			if len(lt) > best || (len(lt) == best && at < bestAt) {
				field, best, bestAt = set.field, len(lt), at
			}
		}
	}
	return field, false
}

// labelOf returns the field a selection heads, if any.
func labelOf(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	f, _ := classifyLabel(text(s))
	return f
}

// isSectionBoundary reports whether walking should stop at s: either a real
// heading or any element titled with another section label.
func isSectionBoundary(s *goquery.Selection) bool {
	if headingTags[tagName(s)] {
		return true
	}
	if s.Is(labelSelector) && labelOf(s) != "" {
		return true
	}
	// a wrapper whose first element is a label starts the next section
	first := s.Children().First()
	return first.Length() > 0 && first.Is(labelSelector) && labelOf(first) != ""
}

// locate returns candidate label elements for field, exact matches first, then
// substring matches, each in document order. The product title is never a label.
func (p *Page) locate(field string) []*goquery.Selection {
	var exact, partial []*goquery.Selection
	p.doc.Find(labelSelector).Not("h1").Each(func(_ int, s *goquery.Selection) {
		f, ex := classifyLabel(text(s))
		if f != field {
			return
		}
		if ex {
			exact = append(exact, s)
		} else {
			partial = append(partial, s)
		}
	})
	return append(exact, partial...)
}

// inlineValue reads "萃取方法：蒸氣蒸餾" style labels that carry their value.
func inlineValue(label *goquery.Selection, field string) (string, bool) {
	t := text(label)
	i := strings.IndexAny(t, "：:")
	if i < 0 {
		return "", false
	}
	_, size := utf8.DecodeRuneInString(t[i:])
	head, rest := t[:i], strings.TrimSpace(t[i+size:])
	if f, _ := classifyLabel(head); f != field || rest == "" {
		return "", false
	}
	return rest, true
}

// walkAdjacent serves the narrow column, where values sit right after the label.
func walkAdjacent(label *goquery.Selection) (product.RawList, bool) {
	sib := label.Next()
	for sib.Length() > 0 && isDecorative(sib) {
		sib = sib.Next()
	}
	if sib.Length() == 0 {
		return walkTextNodes(label)
	}
	if isSectionBoundary(sib) {
		return product.RawList{}, false
	}
	return contentOf(sib)
}

// walkMain serves the main column: skip decorative and empty siblings until the
// first paragraph, list or non-empty container; stop at the next section.
func walkMain(label *goquery.Selection) (product.RawList, bool) {
	for sib := label.Next(); sib.Length() > 0; sib = sib.Next() {
		if isSectionBoundary(sib) {
			return product.RawList{}, false
		}
		if isDecorative(sib) {
			continue
		}
		if rl, ok := contentOf(sib); ok {
			return rl, true
		}
	}
	return walkTextNodes(label)
}

// walkParent handles labels wrapped alone in a title container whose content is
// the wrapper's sibling.
func walkParent(label *goquery.Selection) (product.RawList, bool) {
	parent := label.Parent()
	if parent.Length() == 0 || goquery.NodeName(parent) == "body" {
		return product.RawList{}, false
	}
	if trimLabel(text(parent)) != trimLabel(text(label)) {
		return product.RawList{}, false
	}
	return walkMain(parent)
}

// contentOf turns one content element into raw output.
func contentOf(s *goquery.Selection) (product.RawList, bool) {
	switch tagName(s) {
	case "ul", "ol":
		if items := listItems(s); len(items) > 0 {
			return product.RawList{Items: items}, true
		}
		return product.RawList{}, false
	case "p":
		if t := blockText(s); t != "" {
			return product.RawList{Text: t}, true
		}
		return product.RawList{}, false
	}
	// generic container: a nested list wins over its surrounding text
	if lists := s.Find("ul, ol"); lists.Length() > 0 {
		if items := listItems(lists); len(items) > 0 && len(items)*2 >= countBlocks(s) {
			return product.RawList{Items: items}, true
		}
	}
	if t := blockText(s); t != "" {
		return product.RawList{Text: t}, true
	}
	return product.RawList{}, false
}

func countBlocks(s *goquery.Selection) int {
	return s.Find("li, p").Length()
}

// walkTextNodes collects bare text that follows the label inside its parent,
// e.g. <p><strong>功效：</strong>舒緩<br>放鬆</p>.
func walkTextNodes(label *goquery.Selection) (product.RawList, bool) {
	if label.Length() == 0 {
		return product.RawList{}, false
	}
	target := label.Nodes[0]
	parent := target.Parent
	if parent == nil {
		return product.RawList{}, false
	}
	var parts []string
	after := false
	for n := parent.FirstChild; n != nil; n = n.NextSibling {
		if n == target {
			after = true
			continue
		}
		if !after {
			continue
		}
		if n.Type == html.ElementNode {
			if headingTags[n.Data] {
				break
			}
			if el := goquery.NewDocumentFromNode(n).Selection; el.Is(labelSelector) && labelOf(el) != "" {
				break
			}
		}
		var t string
		if n.Type == html.TextNode {
			t = strings.TrimSpace(whitespace.ReplaceAllString(n.Data, " "))
		} else {
			t = nodeText(n)
		}
		t = strings.TrimLeft(t, labelTrim)
		if t != "" {
			parts = append(parts, t)
		}
	}
	switch len(parts) {
	case 0:
		return product.RawList{}, false
	case 1:
		return product.RawList{Text: parts[0]}, true
	}
	return product.RawList{Items: parts}, true
}
