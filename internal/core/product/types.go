// Package product holds the catalog record shared by every pipeline stage.
package product

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one catalog entry. Field order is the serialized key order.
type Record struct {
	BusinessKey string `json:"businessKey"`
	ID          string `json:"id"`

	Name           string `json:"name"`
	EnglishName    string `json:"englishName"`
	ScientificName string `json:"scientificName,omitempty"`

	Description         string `json:"description"`
	ProductIntroduction string `json:"productIntroduction,omitempty"`
	ApplicationGuide    string `json:"applicationGuide,omitempty"`
	AromaDescription    string `json:"aromaDescription,omitempty"`
	ExtractionMethod    string `json:"extractionMethod,omitempty"`
	PlantPart           string `json:"plantPart,omitempty"`

	MainBenefits      []string   `json:"mainBenefits"`
	MainIngredients   []string   `json:"mainIngredients"`
	UsageInstructions []string   `json:"usageInstructions"`
	Cautions          StringList `json:"cautions"`

	ProductCode string   `json:"productCode,omitempty"`
	RetailPrice *int     `json:"retailPrice,omitempty"`
	MemberPrice *int     `json:"memberPrice,omitempty"`
	PVPoints    *float64 `json:"pvPoints,omitempty"`
	Volume      string   `json:"volume,omitempty"`

	Category    Category `json:"category"`
	Collections []string `json:"collections"`

	URL      string `json:"url"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// StringList is a list that also accepts a bare JSON string when decoding, since
// older partition files stored single cautions as plain text.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		one = strings.TrimSpace(one)
		if one == "" {
			*l = StringList{}
			return nil
		}
		*l = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("cautions: %w", err)
	}
	*l = many
	return nil
}

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Link is a detail page found on a listing page.
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RawFields is the untyped output of extraction. Strings may still hold
// delimiter-joined lists; List holds items when the markup itself was a list.
type RawFields struct {
	URL string

	Name           string
	EnglishName    string
	ScientificName string
	ImageURL       string

	Description         string
	ProductIntroduction string
	ApplicationGuide    string
	AromaDescription    string
	ExtractionMethod    string
	PlantPart           string

	MainBenefits      RawList
	MainIngredients   RawList
	UsageInstructions RawList
	Cautions          RawList

	ProductCode string
	RetailPrice string
	MemberPrice string
	PVPoints    string
	Volume      string
}

// RawList is either a markup list (Items) or a single text blob (Text).
type RawList struct {
	Items []string
	Text  string
}

func (r RawList) Empty() bool {
	return len(r.Items) == 0 && strings.TrimSpace(r.Text) == ""
}

// NewID derives the opaque record id from the generation time.
func NewID(now time.Time) string {
	return "p" + strconv.FormatInt(now.UnixMilli(), 10)
}

// Clone returns a deep copy so merges never alias slices of stored records.
func (r Record) Clone() Record {
	c := r
	c.MainBenefits = cloneStrings(r.MainBenefits)
	c.MainIngredients = cloneStrings(r.MainIngredients)
	c.UsageInstructions = cloneStrings(r.UsageInstructions)
	c.Cautions = StringList(cloneStrings(r.Cautions))
	c.Collections = cloneStrings(r.Collections)
	if r.RetailPrice != nil {
		v := *r.RetailPrice
		c.RetailPrice = &v
	}
	if r.MemberPrice != nil {
		v := *r.MemberPrice
		c.MemberPrice = &v
	}
	if r.PVPoints != nil {
		v := *r.PVPoints
		c.PVPoints = &v
	}
	return c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Normalized fills nil lists with empty ones so files serialize "[]" rather than "null".
func (r Record) Normalized() Record {
	if r.MainBenefits == nil {
		r.MainBenefits = []string{}
	}
	if r.MainIngredients == nil {
		r.MainIngredients = []string{}
	}
	if r.UsageInstructions == nil {
		r.UsageInstructions = []string{}
	}
	if r.Cautions == nil {
		r.Cautions = StringList{}
	}
	if r.Collections == nil {
		r.Collections = []string{}
	}
	return r
}
