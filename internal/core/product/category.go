package product

import "fmt"

type Category string

const (
	CategorySingleOils        Category = "single-oils"
	CategoryProprietaryBlends Category = "proprietary-blends"
	CategorySkincare          Category = "skincare"
	CategoryWellness          Category = "wellness"
	CategoryAccessories       Category = "accessories"
	CategoryOnGuard           Category = "onguard-collection"
)

// Categories in aggregate sort order. CategoryOnGuard doubles as the
// miscellaneous partition for items that fit no primary category.
var Categories = []Category{
	CategorySingleOils,
	CategoryProprietaryBlends,
	CategorySkincare,
	CategoryWellness,
	CategoryAccessories,
	CategoryOnGuard,
}

// CollectionPartition receives records that classify into no primary category.
const CollectionPartition = CategoryOnGuard

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Rank orders categories in the aggregate view; unknown categories sort last.
func (c Category) Rank() int {
	for i, k := range Categories {
		if k == c {
			return i
		}
	}
	return len(Categories)
}

// IsCollection reports whether the category is a promotional collection rather
// than a primary product line.
func (c Category) IsCollection() bool {
	return c == CategoryOnGuard
}
