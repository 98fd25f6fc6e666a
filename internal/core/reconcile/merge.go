package reconcile

import (
	"fmt"
	"strings"

	"dario.cat/mergo"

	"oilcatalog/internal/core/product"
)

// Merge applies the field-level fallback rules to an existing record:
// scalars keep the stored value unless it is empty, lists are replaced only by
// non-empty lists, collections are unioned. The business key never changes.
func Merge(existing, incoming product.Record) (product.Record, error) {
	out := existing.Clone()
	in := incoming.Clone()

	benefits, ingredients, usage, cautions := in.MainBenefits, in.MainIngredients, in.UsageInstructions, in.Cautions
	in.MainBenefits, in.MainIngredients, in.UsageInstructions, in.Cautions = nil, nil, nil, nil
	in.Collections = nil
	in.BusinessKey = ""

	// a stored zero price is a confirmed value, not a gap
	if err := mergo.Merge(&out, in, mergo.WithoutDereference); err != nil {
		return existing, fmt.Errorf("merge %s: %w", existing.BusinessKey, err)
	}

	if len(benefits) > 0 {
		out.MainBenefits = benefits
	}
	if len(ingredients) > 0 {
		out.MainIngredients = ingredients
	}
	if len(usage) > 0 {
		out.UsageInstructions = usage
	}
	if len(cautions) > 0 {
		out.Cautions = cautions
	}
	out.Collections = union(existing.Collections, incoming.Collections)
	return out.Normalized(), nil
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
