package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"oilcatalog/internal/core/product"
)

func TestWriteFileOneSheetPerCategory(t *testing.T) {
	price := 1250
	records := []product.Record{
		{BusinessKey: "6010001", Name: "薰衣草", Category: product.CategorySingleOils, RetailPrice: &price, MainBenefits: []string{"舒緩", "放鬆"}},
		{BusinessKey: "slug:deep-blue", Name: "舒緩複方", Category: product.CategoryProprietaryBlends},
	}
	out := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, WriteFile(records, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	var want []string
	for _, c := range product.Categories {
		want = append(want, string(c))
	}
	assert.Equal(t, want, f.GetSheetList())

	rows, err := f.GetRows(string(product.CategorySingleOils))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Key", rows[0][0])
	assert.Equal(t, "薰衣草", rows[1][1])
	assert.Equal(t, "1250", rows[1][6])
	assert.Equal(t, "舒緩\n放鬆", rows[1][9])

	rows, err = f.GetRows(string(product.CategoryWellness))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
