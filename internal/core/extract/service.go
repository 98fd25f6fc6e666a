// Package extract pulls raw field values out of a rendered detail page.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"oilcatalog/internal/core/product"
	"oilcatalog/internal/logger"
)

// ErrMissingName means neither the page nor its URL yields a product name.
var ErrMissingName = errors.New("product name not recoverable")

type Service struct {
	log *logger.Logger
}

func NewService(log *logger.Logger) *Service {
	if log == nil {
		log = logger.New("Extract")
	}
	return &Service{log: log}
}

// Result is the raw extraction of one page. Trace maps each recovered field to
// the strategy that produced it.
type Result struct {
	Fields product.RawFields
	Trace  map[string]string
}

// Missing lists the labelled fields no strategy recovered.
func (r Result) Missing() []string {
	var out []string
	for _, f := range []string{
		FieldEnglishName, FieldDescription, FieldMainBenefits,
		FieldMainIngredients, FieldUsageInstructions, FieldCautions,
		FieldProductCode, FieldRetailPrice,
	} {
		if _, ok := r.Trace[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// FromHTML extracts a detail page. Missing fields are left empty; the only
// error is an unrecoverable name.
func (s *Service) FromHTML(html, pageURL string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return s.FromDocument(doc, pageURL)
}

func (s *Service) FromDocument(doc *goquery.Document, pageURL string) (Result, error) {
	p := NewPage(doc, pageURL)
	res := Result{
		Fields: product.RawFields{URL: pageURL},
		Trace:  map[string]string{},
	}
	f := &res.Fields

	str := func(field string, table []Strategy[string], dst *string) {
		if v, name, ok := firstOf(p, table); ok {
			*dst = v
			res.Trace[field] = name
		}
	}
	list := func(field string, table []Strategy[product.RawList], dst *product.RawList) {
		if v, name, ok := firstOf(p, table); ok && !v.Empty() {
			*dst = v
			res.Trace[field] = name
		}
	}

	str(FieldName, nameStrategies, &f.Name)
	str(FieldEnglishName, englishNameStrategies, &f.EnglishName)
	str(FieldScientificName, scientificNameStrategies, &f.ScientificName)
	str(FieldImageURL, imageStrategies, &f.ImageURL)

	str(FieldDescription, descriptionStrategies, &f.Description)
	str(FieldProductIntroduction, introductionStrategies, &f.ProductIntroduction)
	str(FieldApplicationGuide, applicationStrategies, &f.ApplicationGuide)
	str(FieldAromaDescription, aromaStrategies, &f.AromaDescription)
	str(FieldExtractionMethod, extractionStrategies, &f.ExtractionMethod)
	str(FieldPlantPart, plantPartStrategies, &f.PlantPart)

	list(FieldMainBenefits, benefitsStrategies, &f.MainBenefits)
	list(FieldMainIngredients, ingredientsStrategies, &f.MainIngredients)
	list(FieldUsageInstructions, usageStrategies, &f.UsageInstructions)
	list(FieldCautions, cautionsStrategies, &f.Cautions)

	c := extractCommercial(p)
	for field, kv := range map[string]struct {
		v   string
		dst *string
	}{
		FieldProductCode: {c.Code, &f.ProductCode},
		FieldRetailPrice: {c.Retail, &f.RetailPrice},
		FieldMemberPrice: {c.Member, &f.MemberPrice},
		FieldPVPoints:    {c.Points, &f.PVPoints},
		FieldVolume:      {c.Volume, &f.Volume},
	} {
		if kv.v != "" {
			*kv.dst = kv.v
			res.Trace[field] = "text pattern"
		}
	}

	if f.Name == "" && product.SlugFromURL(pageURL) == "" {
		return res, fmt.Errorf("%s: %w", pageURL, ErrMissingName)
	}

	s.log.Debug().
		Str("url", pageURL).
		Int("fields", len(res.Trace)).
		Strs("missing", res.Missing()).
		Msg("extracted")
	return res, nil
}
