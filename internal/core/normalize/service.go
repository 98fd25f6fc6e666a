package normalize

import (
	"regexp"
	"strings"
	"time"

	"oilcatalog/internal/core/product"
	"oilcatalog/internal/logger"
)

var inlineSpace = regexp.MustCompile(`[ \t\x{3000}]+`)

type Service struct {
	log *logger.Logger
	now func() time.Time
}

func NewService(log *logger.Logger) *Service {
	if log == nil {
		log = logger.New("Normalize")
	}
	return &Service{log: log, now: time.Now}
}

// WithClock overrides the id clock, used by tests for stable ids.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ambiguity records a list field where more than one delimiter convention applied.
type Ambiguity struct {
	Field        string         `json:"field"`
	Chosen       string         `json:"chosen"`
	ChosenCount  int            `json:"chosen_count"`
	Alternatives map[string]int `json:"alternatives"`
}

// Report describes judgement calls made while normalizing one record.
type Report struct {
	Ambiguities []Ambiguity
}

func (r Report) Ambiguous() bool { return len(r.Ambiguities) > 0 }

// Normalize converts raw extractor output into a canonical record. category is the
// crawl's category signal; final partition placement is decided by reconciliation.
func (s *Service) Normalize(raw product.RawFields, category product.Category) (product.Record, Report) {
	var rep Report
	list := func(field string, rl product.RawList) []string {
		items, amb := s.list(field, rl)
		if amb != nil {
			rep.Ambiguities = append(rep.Ambiguities, *amb)
			s.log.Warn().
				Str("url", raw.URL).
				Str("field", field).
				Str("chosen", amb.Chosen).
				Interface("alternatives", amb.Alternatives).
				Msg("ambiguous list delimiters")
		}
		return items
	}

	name := CleanText(raw.Name)
	if name == "" {
		name = product.NameFromSlug(raw.URL)
	}
	code := product.NormalizeCode(raw.ProductCode)

	rec := product.Record{
		BusinessKey: product.BusinessKey(code, raw.URL),
		ID:          product.NewID(s.now()),

		Name:           name,
		EnglishName:    CleanText(raw.EnglishName),
		ScientificName: CleanText(raw.ScientificName),

		Description:         CleanParagraphs(raw.Description),
		ProductIntroduction: CleanParagraphs(raw.ProductIntroduction),
		ApplicationGuide:    CleanParagraphs(raw.ApplicationGuide),
		AromaDescription:    CleanText(raw.AromaDescription),
		ExtractionMethod:    CleanText(raw.ExtractionMethod),
		PlantPart:           CleanText(raw.PlantPart),

		MainBenefits:      list("mainBenefits", raw.MainBenefits),
		MainIngredients:   list("mainIngredients", raw.MainIngredients),
		UsageInstructions: list("usageInstructions", raw.UsageInstructions),
		Cautions:          product.StringList(list("cautions", raw.Cautions)),

		ProductCode: code,
		RetailPrice: ParsePrice(raw.RetailPrice),
		MemberPrice: ParsePrice(raw.MemberPrice),
		PVPoints:    ParsePoints(raw.PVPoints),
		Volume:      CleanVolume(raw.Volume),

		Category:    category,
		Collections: []string{string(category)},

		URL:      strings.TrimSpace(raw.URL),
		ImageURL: strings.TrimSpace(raw.ImageURL),
	}
	return rec.Normalized(), rep
}

func (s *Service) list(field string, rl product.RawList) ([]string, *Ambiguity) {
	if len(rl.Items) > 1 {
		return cleanItems(rl.Items), nil
	}
	text := rl.Text
	if len(rl.Items) == 1 {
		text = rl.Items[0]
	}
	sp := SplitList(text)
	if !sp.Ambiguous {
		return sp.Items, nil
	}
	return sp.Items, &Ambiguity{
		Field:        field,
		Chosen:       sp.Strategy,
		ChosenCount:  len(sp.Items),
		Alternatives: sp.Alternatives,
	}
}

// CleanText collapses all whitespace into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanParagraphs collapses spaces inside lines but keeps paragraph breaks.
func CleanParagraphs(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(inlineSpace.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
