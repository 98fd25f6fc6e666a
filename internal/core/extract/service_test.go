package extract

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oilcatalog/internal/core/product"
	"oilcatalog/internal/logger"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func TestFromHTMLMainAndNarrowColumns(t *testing.T) {
	res, err := NewService(logger.Nop()).FromHTML(fixture(t, "lavender.html"), "https://www.doterra.com/TW/zh_TW/p/lavender-oil")
	require.NoError(t, err)
	f := res.Fields

	assert.Equal(t, "薰衣草精油", f.Name)
	assert.Equal(t, "Lavender", f.EnglishName)
	assert.Equal(t, "Lavandula angustifolia", f.ScientificName)
	assert.Equal(t, "https://www.doterra.com/images/products/lavender-15ml.jpg", f.ImageURL)

	assert.Equal(t, "薰衣草自古以來便因其鎮靜特性而備受推崇。", f.Description)
	assert.Equal(t, []string{"舒緩偶發的皮膚不適", "幫助入睡"}, f.MainBenefits.Items)
	assert.Equal(t, "睡前在枕頭上滴一至兩滴、加入浴缸中泡澡、塗抹於頸部", f.UsageInstructions.Text)
	assert.Equal(t, "可能導致皮膚敏感。請置於兒童接觸不到的地方。", f.Cautions.Text)

	assert.Equal(t, "蒸氣蒸餾", f.ExtractionMethod)
	assert.Equal(t, "花", f.PlantPart)
	assert.Equal(t, "花香、甜美、草本", f.AromaDescription)

	assert.Equal(t, "3000 1234", f.ProductCode)
	assert.Equal(t, "NT$1,460", f.RetailPrice)
	assert.Equal(t, "NT$1,095", f.MemberPrice)
	assert.Equal(t, "32.5", f.PVPoints)
	assert.Equal(t, "15 ml", f.Volume)

	assert.Equal(t, "selector h1", res.Trace[FieldName])
	assert.Equal(t, "section description", res.Trace[FieldDescription])
	assert.NotContains(t, res.Trace, FieldProductIntroduction)
}

func TestFromHTMLWrappedLabelsAndTextNodes(t *testing.T) {
	res, err := NewService(logger.Nop()).FromHTML(fixture(t, "deep-blue.html"), "https://www.doterra.com/TW/zh_TW/p/deep-blue-oil")
	require.NoError(t, err)
	f := res.Fields

	assert.Equal(t, "舒緩複方精油", f.Name)
	assert.Equal(t, "舒緩複方精油含有冬青、樟樹等成分。\n適合運動後按摩使用。", f.ProductIntroduction)
	assert.Equal(t, []string{"冬青", "樟樹", "薄荷"}, f.MainIngredients.Items)
	assert.Equal(t, "僅供外用。避免接觸眼睛。", f.Cautions.Text)
	assert.Equal(t, "NT$2,180", f.RetailPrice)
	assert.Empty(t, f.ProductCode)
	assert.Empty(t, f.Description)
	assert.Contains(t, res.Missing(), FieldProductCode)
}

func TestFromHTMLNameFallsBackToSlug(t *testing.T) {
	res, err := NewService(logger.Nop()).FromHTML("<html><body><p>沒有標題</p></body></html>", "https://www.doterra.com/TW/zh_TW/p/on-guard-beadlets")
	require.NoError(t, err)
	assert.Empty(t, res.Fields.Name)
	assert.Equal(t, product.RawList{}, res.Fields.Cautions)
}

func TestFromHTMLRejectsNamelessPageWithoutSlug(t *testing.T) {
	_, err := NewService(logger.Nop()).FromHTML("<html><body></body></html>", "https://www.doterra.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingName))
}

func TestClassifyLabelPrefersLongestTitle(t *testing.T) {
	cases := map[string]string{
		"香味描述":       FieldAromaDescription,
		"產品描述：":      FieldDescription,
		"主要功效":       FieldMainBenefits,
		"Directions": FieldUsageInstructions,
		"萃取方法：蒸氣蒸餾":  FieldExtractionMethod,
		"薰衣草精油":      "",
	}
	for in, want := range cases {
		got, _ := classifyLabel(in)
		assert.Equal(t, want, got, in)
	}
}

func TestClassifyLabelTiesAreStable(t *testing.T) {
	cases := map[string]string{
		"使用方法及注意事項": FieldUsageInstructions,
		"注意事項及使用方法": FieldCautions,
	}
	for in, want := range cases {
		for i := 0; i < 100; i++ {
			got, exact := classifyLabel(in)
			require.Equal(t, want, got, in)
			assert.False(t, exact)
		}
	}
}

func TestInlineValue(t *testing.T) {
	doc := mustDoc(t, `<p><b>植物部位: 葉</b></p>`)
	v, ok := inlineValue(doc.Find("b"), FieldPlantPart)
	require.True(t, ok)
	assert.Equal(t, "葉", v)

	_, ok = inlineValue(doc.Find("b"), FieldExtractionMethod)
	assert.False(t, ok)
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}
