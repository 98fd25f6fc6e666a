package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberPattern = regexp.MustCompile(`\d[\d,，]*(?:\.\d+)?`)
	currencyMarks = []string{"NT$", "NTD", "TWD", "US$", "$", "＄"}
	spaces        = regexp.MustCompile(`\s+`)
)

// ParsePrice extracts an integer amount from text such as "建議售價：NT$1,460".
// It returns nil when no amount can be read, so unknown never reads as zero.
func ParsePrice(text string) *int {
	f, ok := parseAmount(text)
	if !ok {
		return nil
	}
	v := int(math.Round(f))
	return &v
}

// ParsePoints extracts a decimal point value such as "PV：32.5".
func ParsePoints(text string) *float64 {
	f, ok := parseAmount(text)
	if !ok {
		return nil
	}
	return &f
}

func parseAmount(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	// the amount follows the last currency marker when one is present
	for _, mark := range currencyMarks {
		if i := strings.LastIndex(text, mark); i >= 0 {
			text = text[i+len(mark):]
			break
		}
	}
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	m = strings.NewReplacer(",", "", "，", "").Replace(m)
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// CleanVolume collapses whitespace in a volume string ("15 ml" -> "15ml").
func CleanVolume(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return spaces.ReplaceAllString(text, "")
}
