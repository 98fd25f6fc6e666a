package reconcile

import (
	"strings"

	"oilcatalog/internal/core/product"
)

// nameRules are checked in order; blends come before single oils because
// "複方精油" also contains "精油".
var nameRules = []struct {
	category product.Category
	words    []string
}{
	{product.CategoryProprietaryBlends, []string{"複方", "blend"}},
	{product.CategorySkincare, []string{"護膚", "乳液", "面霜", "潔面", "洗面", "精華", "保濕", "護手霜", "身體乳", "洗髮", "潤髮", "沐浴", "skin"}},
	{product.CategoryWellness, []string{"膠囊", "營養", "補充", "益生菌", "軟糖", "錠", "softgel", "supplement"}},
	{product.CategoryAccessories, []string{"擴香儀", "擴香器", "滾珠瓶", "收納", "diffuser"}},
	{product.CategorySingleOils, []string{"精油", "oil"}},
}

// Classify picks the partition for a record seen for the first time. A primary
// crawl category wins; collection crawls and unknown signals fall back to the
// name, and anything unrecognised lands in the collection partition.
func Classify(name string, signal product.Category) product.Category {
	if signal != "" && signal.Rank() < len(product.Categories) && !signal.IsCollection() {
		return signal
	}
	n := strings.ToLower(name)
	for _, r := range nameRules {
		for _, w := range r.words {
			if strings.Contains(n, w) {
				return r.category
			}
		}
	}
	return product.CollectionPartition
}
