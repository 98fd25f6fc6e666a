package product

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugFromURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.doterra.com/TW/zh_TW/p/lavender-oil", "lavender-oil"},
		{"https://www.doterra.com/TW/zh_TW/p/Lavender-Oil/?utm=x", "lavender-oil"},
		{"https://www.doterra.com/TW/zh_TW/p/on-guard-beadlets/reviews", "on-guard-beadlets"},
		{"https://shop.example.com/items/peppermint", "peppermint"},
		{"https://shop.example.com/", ""},
		{"", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, SlugFromURL(tc.in))
		})
	}
}

func TestBusinessKey(t *testing.T) {
	assert.Equal(t, "60203880", BusinessKey(" 6020 3880 ", "https://x/p/lavender-oil"))
	assert.Equal(t, "slug:lavender-oil", BusinessKey("", "https://x/p/lavender-oil"))
	assert.Equal(t, "", BusinessKey("", ""))
	// a numeric slug must not collide with a code
	assert.NotEqual(t, BusinessKey("12345", ""), BusinessKey("", "https://x/p/12345"))
}

func TestNameFromSlug(t *testing.T) {
	assert.Equal(t, "Deep Blue Rub", NameFromSlug("https://x/p/deep-blue-rub"))
	assert.Equal(t, "", NameFromSlug("https://x/"))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("wellness")
	require.NoError(t, err)
	assert.Equal(t, CategoryWellness, c)
	assert.Less(t, CategorySingleOils.Rank(), CategoryOnGuard.Rank())

	_, err = ParseCategory("candles")
	assert.Error(t, err)
}

func TestCautionsAcceptsStringOrArray(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"cautions":"避免接觸眼睛"}`), &r))
	assert.Equal(t, StringList{"避免接觸眼睛"}, r.Cautions)

	require.NoError(t, json.Unmarshal([]byte(`{"cautions":["a","b"]}`), &r))
	assert.Equal(t, StringList{"a", "b"}, r.Cautions)

	out, err := json.Marshal(Record{}.Normalized())
	require.NoError(t, err)
	assert.Contains(t, string(out), `"cautions":[]`)
}

func TestCloneDoesNotAlias(t *testing.T) {
	price := 1460
	r := Record{MainBenefits: []string{"a"}, RetailPrice: &price}
	c := r.Clone()
	c.MainBenefits[0] = "b"
	*c.RetailPrice = 1
	assert.Equal(t, "a", r.MainBenefits[0])
	assert.Equal(t, 1460, *r.RetailPrice)
}

func TestNewID(t *testing.T) {
	assert.Equal(t, "p1700000000000", NewID(time.UnixMilli(1700000000000)))
}
