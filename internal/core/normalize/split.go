package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// Comma splitting only applies when every piece is longer than this, so a
	// single sentence with an inner comma stays whole.
	commaSegmentMin = 4
	// Sentence splitting only applies to text longer than this.
	sentenceThreshold = 40
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\x{3000}]{2,}`)
	lineBreaks = regexp.MustCompile(`\s*\n+\s*`)
	bulletHead = regexp.MustCompile(`^(?:[•·●▪■◆\-\*]\s*|\d{1,2}[、)）]\s*|\d{1,2}\.\s+)`)
)

// splitter is one delimiter convention. ok=false means it does not apply.
type splitter struct {
	name  string
	split func(text string) ([]string, bool)
}

// splitters in priority order; the first that applies wins.
var splitters = []splitter{
	{"ideographic-comma", splitOn(cleanItems, "、")},
	{"pipe", splitOn(keepItems, "|", "｜")},
	{"comma", splitComma},
	{"space-run", splitSpaceRun},
	{"sentence", splitSentences},
}

// Split is the outcome of SplitList.
type Split struct {
	Items    []string
	Strategy string
	// Ambiguous is set when another applicable convention would have produced a
	// materially different list.
	Ambiguous    bool
	Alternatives map[string]int
}

// SplitList resolves a delimiter-joined string into list items.
func SplitList(text string) Split {
	text = canonical(text)
	if text == "" {
		return Split{Items: []string{}, Strategy: "empty"}
	}

	var out Split
	for _, s := range splitters {
		items, ok := s.split(text)
		if !ok {
			continue
		}
		if out.Strategy == "" {
			out.Items = items
			out.Strategy = s.name
			continue
		}
		if materiallyDifferent(out.Items, items) {
			if out.Alternatives == nil {
				out.Alternatives = map[string]int{}
			}
			out.Alternatives[s.name] = len(items)
			out.Ambiguous = true
		}
	}
	if out.Strategy == "" {
		return Split{Items: []string{text}, Strategy: "single"}
	}
	return out
}

// canonical trims the text and turns line breaks into a space run so that
// multi-line blobs fall through to the space-run convention.
func canonical(text string) string {
	text = strings.TrimSpace(text)
	return lineBreaks.ReplaceAllString(text, "  ")
}

func splitOn(clean func([]string) []string, seps ...string) func(string) ([]string, bool) {
	return func(text string) ([]string, bool) {
		sep := ""
		for _, s := range seps {
			if strings.Contains(text, s) {
				sep = s
				break
			}
		}
		if sep == "" {
			return nil, false
		}
		items := clean(strings.Split(text, sep))
		return items, len(items) > 0
	}
}

func splitComma(text string) ([]string, bool) {
	if !strings.ContainsAny(text, "，,") {
		return nil, false
	}
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == '，' || r == ',' })
	for _, p := range parts {
		if utf8.RuneCountInString(strings.TrimSpace(p)) <= commaSegmentMin {
			return nil, false
		}
	}
	items := cleanItems(parts)
	return items, len(items) > 1
}

func splitSpaceRun(text string) ([]string, bool) {
	if !spaceRun.MatchString(text) {
		return nil, false
	}
	items := cleanItems(spaceRun.Split(text, -1))
	return items, len(items) > 1
}

func splitSentences(text string) ([]string, bool) {
	if utf8.RuneCountInString(text) <= sentenceThreshold {
		return nil, false
	}
	var (
		items []string
		cur   strings.Builder
	)
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if isSentenceEnd(runes, i) {
			items = append(items, cur.String())
			cur.Reset()
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		items = append(items, cur.String())
	}
	items = cleanItems(items)
	return items, len(items) > 1
}

func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '。', '！', '？', '!', '?', '；':
		return true
	case '.':
		// "1.5 ml" is not a sentence end
		return i == len(runes)-1 || unicode.IsSpace(runes[i+1])
	}
	return false
}

// cleanItems trims items, strips bullet markers and drops empties and duplicates.
func cleanItems(parts []string) []string {
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = CleanItem(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// keepItems trims items and drops empties, nothing else. Pipe-joined lists are
// already explicit, so repeats and ordinals are content and "|" rejoins them.
func keepItems(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanItem trims one list item and removes a leading bullet or ordinal.
func CleanItem(s string) string {
	s = strings.TrimSpace(s)
	s = bulletHead.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func materiallyDifferent(a, b []string) bool {
	if len(a) == len(b) {
		return false
	}
	return len(a) > 1 || len(b) > 1
}
