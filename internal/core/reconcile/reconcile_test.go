package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oilcatalog/internal/core/product"
	"oilcatalog/internal/logger"
)

const lavenderURL = "https://www.doterra.com/TW/zh_TW/p/lavender-oil"

func intp(v int) *int { return &v }

func stored() product.Record {
	return product.Record{
		BusinessKey:       "30001234",
		ID:                "p1690000000000",
		Name:              "薰衣草精油",
		EnglishName:       "Lavender",
		Description:       "舊的描述",
		MainBenefits:      []string{"舒緩", "助眠"},
		MainIngredients:   []string{},
		UsageInstructions: []string{"擴香"},
		Cautions:          product.StringList{"僅供外用", "避免接觸眼睛", "孕婦請諮詢醫師"},
		ProductCode:       "30001234",
		RetailPrice:       intp(1460),
		Category:          product.CategorySingleOils,
		Collections:       []string{"single-oils"},
		URL:               lavenderURL,
	}.Normalized()
}

func newIndex(records ...product.Record) *Index {
	parts := map[product.Category][]product.Record{}
	for _, r := range records {
		parts[r.Category] = append(parts[r.Category], r)
	}
	return Build(parts, logger.Nop())
}

func TestMergeKeepsCautionsWhenNewListEmpty(t *testing.T) {
	incoming := product.Record{
		BusinessKey:  "30001234",
		ID:           "p1700000000000",
		Name:         "薰衣草精油",
		Description:  "新的描述",
		MainBenefits: []string{"舒緩", "助眠", "淨化"},
		Cautions:     product.StringList{},
		Category:     product.CategorySingleOils,
		Collections:  []string{"single-oils"},
		URL:          lavenderURL,
	}

	got, err := Merge(stored(), incoming)
	require.NoError(t, err)

	assert.Equal(t, product.StringList{"僅供外用", "避免接觸眼睛", "孕婦請諮詢醫師"}, got.Cautions)
	assert.Equal(t, []string{"舒緩", "助眠", "淨化"}, got.MainBenefits)
	assert.Equal(t, "舊的描述", got.Description, "populated scalar is kept")
	assert.Equal(t, "Lavender", got.EnglishName)
	assert.Equal(t, "p1690000000000", got.ID)
	require.NotNil(t, got.RetailPrice)
	assert.Equal(t, 1460, *got.RetailPrice)
}

func TestMergeIsMonotonic(t *testing.T) {
	cases := []struct {
		name     string
		incoming product.Record
	}{
		{"empty", product.Record{}},
		{"scalars only", product.Record{Name: "別的名字", ScientificName: "Lavandula angustifolia", MemberPrice: intp(1095)}},
		{"lists only", product.Record{MainIngredients: []string{"芳樟醇"}, UsageInstructions: []string{"外用"}}},
		{"collections", product.Record{Collections: []string{"onguard-collection"}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			before := stored()
			got, err := Merge(before, c.incoming)
			require.NoError(t, err)

			for field, pair := range map[string][2]string{
				"name":        {before.Name, got.Name},
				"englishName": {before.EnglishName, got.EnglishName},
				"description": {before.Description, got.Description},
				"productCode": {before.ProductCode, got.ProductCode},
				"businessKey": {before.BusinessKey, got.BusinessKey},
			} {
				if pair[0] != "" {
					assert.NotEmpty(t, pair[1], field)
				}
			}
			for field, pair := range map[string][2][]string{
				"mainBenefits":      {before.MainBenefits, got.MainBenefits},
				"usageInstructions": {before.UsageInstructions, got.UsageInstructions},
				"cautions":          {before.Cautions, got.Cautions},
			} {
				if len(pair[0]) > 0 {
					assert.NotEmpty(t, pair[1], field)
				}
			}
			assert.Subset(t, got.Collections, before.Collections)
			assert.Equal(t, "30001234", got.BusinessKey)
		})
	}
}

func TestMergeKeepsConfirmedZeroPrices(t *testing.T) {
	zero := 0.0
	before := stored()
	before.RetailPrice = intp(0)
	before.PVPoints = &zero

	points := 32.5
	got, err := Merge(before, product.Record{RetailPrice: intp(1460), MemberPrice: intp(1095), PVPoints: &points})
	require.NoError(t, err)

	require.NotNil(t, got.RetailPrice)
	assert.Equal(t, 0, *got.RetailPrice)
	require.NotNil(t, got.PVPoints)
	assert.Equal(t, 0.0, *got.PVPoints)
	require.NotNil(t, got.MemberPrice, "unknown price is filled")
	assert.Equal(t, 1095, *got.MemberPrice)
}

func TestMergeUnionsCollections(t *testing.T) {
	got, err := Merge(stored(), product.Record{Collections: []string{"onguard-collection", "single-oils"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"single-oils", "onguard-collection"}, got.Collections)
}

func TestReconcileInsertUpdateSkip(t *testing.T) {
	ix := newIndex(stored())

	peppermint := product.Record{
		BusinessKey: "slug:peppermint-oil",
		Name:        "薄荷精油",
		Category:    product.CategorySingleOils,
		Collections: []string{"single-oils"},
		URL:         "https://www.doterra.com/TW/zh_TW/p/peppermint-oil",
	}
	d, err := ix.Reconcile(peppermint)
	require.NoError(t, err)
	assert.Equal(t, ActionInsert, d.Action)
	assert.Equal(t, product.CategorySingleOils, d.Partition)
	assert.True(t, ix.Apply(d))
	assert.Len(t, ix.Partition(product.CategorySingleOils), 2)

	same := stored()
	same.ID = "p1800000000000"
	d, err = ix.Reconcile(same)
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, d.Action)
	assert.False(t, ix.Apply(d))

	richer := stored()
	richer.ScientificName = "Lavandula angustifolia"
	d, err = ix.Reconcile(richer)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, d.Action)
	assert.Contains(t, d.Diff, "Lavandula angustifolia")
	assert.True(t, ix.Apply(d))

	rec, part, ok := ix.Get("30001234")
	require.True(t, ok)
	assert.Equal(t, product.CategorySingleOils, part)
	assert.Equal(t, "Lavandula angustifolia", rec.ScientificName)
}

func TestReconcileKeepsSlugKeyWhenCodeAppears(t *testing.T) {
	slugKeyed := product.Record{
		BusinessKey: "slug:deep-blue-rub",
		Name:        "舒緩乳霜",
		Category:    product.CategorySkincare,
		Collections: []string{"skincare"},
		URL:         "https://www.doterra.com/TW/zh_TW/p/deep-blue-rub",
	}.Normalized()
	ix := newIndex(slugKeyed)

	withCode := slugKeyed
	withCode.BusinessKey = "60203880"
	withCode.ProductCode = "60203880"
	d, err := ix.Reconcile(withCode)
	require.NoError(t, err)

	assert.Equal(t, ActionUpdate, d.Action)
	assert.Equal(t, "slug:deep-blue-rub", d.Key)
	assert.Equal(t, "slug:deep-blue-rub", d.Record.BusinessKey)
	assert.Equal(t, "60203880", d.Record.ProductCode)
}

func TestReconcileKeyCollisionInRun(t *testing.T) {
	ix := newIndex()
	a := product.Record{BusinessKey: "11112222", Name: "A", URL: "https://www.doterra.com/TW/zh_TW/p/a", Category: product.CategoryWellness}
	b := product.Record{BusinessKey: "11112222", Name: "B", URL: "https://www.doterra.com/TW/zh_TW/p/b", Category: product.CategoryWellness}

	d, err := ix.Reconcile(a)
	require.NoError(t, err)
	ix.Apply(d)

	_, err = ix.Reconcile(b)
	assert.ErrorIs(t, err, ErrKeyCollision)

	// the same URL seen twice is not a collision
	_, err = ix.Reconcile(a)
	assert.NoError(t, err)
}

func TestBuildReportsDuplicates(t *testing.T) {
	dup := stored()
	dup.Category = product.CategoryOnGuard
	ix := Build(map[product.Category][]product.Record{
		product.CategoryOnGuard:    {dup},
		product.CategorySingleOils: {stored()},
	}, logger.Nop())

	assert.Equal(t, 1, ix.Duplicates())
	assert.Equal(t, 1, ix.Len())
	_, part, _ := ix.Get("30001234")
	assert.Equal(t, product.CategorySingleOils, part)
}

func TestBuildDerivesMissingKeys(t *testing.T) {
	legacy := stored()
	legacy.BusinessKey = ""
	legacy.ProductCode = "3000-1234"
	ix := newIndex(legacy)

	_, _, ok := ix.Get("30001234")
	assert.True(t, ok)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		signal product.Category
		want   product.Category
	}{
		{"薰衣草精油", product.CategorySingleOils, product.CategorySingleOils},
		{"任何名稱", product.CategoryAccessories, product.CategoryAccessories},
		{"保衛複方精油", product.CategoryOnGuard, product.CategoryProprietaryBlends},
		{"保衛牙膏", product.CategoryOnGuard, product.CategoryOnGuard},
		{"保衛營養膠囊", product.CategoryOnGuard, product.CategoryWellness},
		{"柔膚保濕乳液", "", product.CategorySkincare},
		{"檸檬精油", "", product.CategorySingleOils},
		{"禮盒", "", product.CategoryOnGuard},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.name, c.signal), c.name)
	}
}

func TestInsertClassifiesAndNormalizes(t *testing.T) {
	ix := newIndex()
	d, err := ix.Reconcile(product.Record{
		BusinessKey: "slug:on-guard-toothpaste",
		Name:        "保衛牙膏",
		Category:    product.CategoryOnGuard,
		URL:         "https://www.doterra.com/TW/zh_TW/p/on-guard-toothpaste",
	})
	require.NoError(t, err)
	assert.Equal(t, product.CategoryOnGuard, d.Partition)
	if diff := cmp.Diff([]string{}, d.Record.MainBenefits); diff != "" {
		t.Errorf("lists not normalized: %s", diff)
	}
}
