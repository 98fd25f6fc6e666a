package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitListPriority(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		want     []string
		strategy string
	}{
		{
			name:     "ideographic comma",
			in:       "舒緩肌膚、促進睡眠、淨化空氣",
			want:     []string{"舒緩肌膚", "促進睡眠", "淨化空氣"},
			strategy: "ideographic-comma",
		},
		{
			name:     "ideographic comma wins over pipe",
			in:       "舒緩、放鬆|淨化",
			want:     []string{"舒緩", "放鬆|淨化"},
			strategy: "ideographic-comma",
		},
		{
			name:     "pipe",
			in:       "避免接觸眼睛|孕婦請先諮詢醫師|置於兒童無法取得處",
			want:     []string{"避免接觸眼睛", "孕婦請先諮詢醫師", "置於兒童無法取得處"},
			strategy: "pipe",
		},
		{
			name:     "full width comma with long segments",
			in:       "滴一至兩滴於掌心深呼吸，加入擴香儀中使用淨化空氣",
			want:     []string{"滴一至兩滴於掌心深呼吸", "加入擴香儀中使用淨化空氣"},
			strategy: "comma",
		},
		{
			name:     "short comma segments stay whole",
			in:       "溫和，清新",
			want:     []string{"溫和，清新"},
			strategy: "single",
		},
		{
			name:     "space runs",
			in:       "擴香使用  局部塗抹  內服",
			want:     []string{"擴香使用", "局部塗抹", "內服"},
			strategy: "space-run",
		},
		{
			name:     "line breaks become space runs",
			in:       "擴香使用\n局部塗抹\n",
			want:     []string{"擴香使用", "局部塗抹"},
			strategy: "space-run",
		},
		{
			name:     "long text splits into sentences",
			in:       "將精油滴入擴香儀中享受宜人的香氣。使用前請以基底油稀釋後塗抹於需要的部位！亦可加入沐浴用品中。",
			want:     []string{"將精油滴入擴香儀中享受宜人的香氣。", "使用前請以基底油稀釋後塗抹於需要的部位！", "亦可加入沐浴用品中。"},
			strategy: "sentence",
		},
		{
			name:     "short sentence text stays whole",
			in:       "擴香使用。",
			want:     []string{"擴香使用。"},
			strategy: "single",
		},
		{
			name:     "empty",
			in:       "   ",
			want:     []string{},
			strategy: "empty",
		},
		{
			name:     "bullets are stripped",
			in:       "• 舒緩、• 放鬆、• 舒緩",
			want:     []string{"舒緩", "放鬆"},
			strategy: "ideographic-comma",
		},
		{
			name:     "pipe items are kept verbatim",
			in:       "• 舒緩| • 放鬆 ||• 舒緩",
			want:     []string{"• 舒緩", "• 放鬆", "• 舒緩"},
			strategy: "pipe",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitList(tc.in)
			assert.Equal(t, tc.want, got.Items)
			assert.Equal(t, tc.strategy, got.Strategy)
		})
	}
}

func TestSplitListPipeRoundTrip(t *testing.T) {
	for _, in := range []string{
		"a|b|c",
		"避免接觸眼睛|孕婦請先諮詢醫師",
		"Apply topically|Diffuse|Take internally",
		"滾珠瓶|滾珠瓶|噴霧",
		"1. 稀釋|2. 塗抹",
	} {
		got := SplitList(in)
		assert.Equal(t, in, strings.Join(got.Items, "|"))
	}
}

func TestSplitListFlagsAmbiguity(t *testing.T) {
	// both the comma and the sentence conventions apply and disagree
	in := "在手心滴一至兩滴精油後，搓揉雙手並深深吸入香氣。可加入擴香儀中於室內使用，營造放鬆的氛圍。"
	got := SplitList(in)

	assert.Equal(t, "comma", got.Strategy)
	assert.True(t, got.Ambiguous)
	assert.Contains(t, got.Alternatives, "sentence")
}

func TestSplitListDecimalIsNotSentenceEnd(t *testing.T) {
	in := "每次使用約1.5毫升並以基底油稀釋後塗抹於肌膚上以舒緩不適感受並請避免接觸眼睛周圍"
	got := SplitList(in)
	assert.Equal(t, []string{in}, got.Items)
}

func TestCleanItem(t *testing.T) {
	assert.Equal(t, "舒緩", CleanItem(" • 舒緩 "))
	assert.Equal(t, "放鬆", CleanItem("2. 放鬆"))
	assert.Equal(t, "1.5滴", CleanItem("1.5滴"))
	assert.Equal(t, "淨化", CleanItem("3）淨化"))
}
