package extract

import (
	"regexp"
	"strings"
)

// Commercial fields are not wrapped in labelled sections, so they are read from
// the flattened page text.
var (
	codePattern   = regexp.MustCompile(`(?i)(?:產品編號|商品編號|產品代碼|品號|料號|item\s*(?:no\.?|number|#)|sku)\s*[:：#]?\s*(\d{4}[\s-]?\d{4}|\d{5,10})`)
	retailPattern = regexp.MustCompile(`(?i)(?:建議零售價|建議售價|零售價|售價|retail(?:\s*price)?)\s*[:：]?\s*((?:NT\$|NTD|TWD|US\$|\$|＄)?\s*\d[\d,，]*(?:\.\d+)?)`)
	memberPattern = regexp.MustCompile(`(?i)(?:會員價|優惠顧客價|會員優惠價|批發價|wholesale(?:\s*price)?)\s*[:：]?\s*((?:NT\$|NTD|TWD|US\$|\$|＄)?\s*\d[\d,，]*(?:\.\d+)?)`)
	pointsPattern = regexp.MustCompile(`(?:PV|點數|積分)\s*[:：]?\s*(\d+(?:\.\d+)?)`)
	volumePattern = regexp.MustCompile(`(?i)(?:容量|規格|內容量|size)\s*[:：]?\s*(\d+(?:\.\d+)?\s*(?:ml|mL|毫升|g|克|公克|顆|粒|片|oz))`)
	bareVolume    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?\s*ml)\b`)
)

type commercial struct {
	Code, Retail, Member, Points, Volume string
}

func extractCommercial(p *Page) commercial {
	var c commercial
	c.Code = submatch(codePattern, p.flat)
	if c.Code == "" {
		if v, ok := metaContent("product:retailer_item_id").Run(p); ok {
			c.Code = v
		} else if v, ok := selectorText(`[itemprop="sku"]`).Run(p); ok {
			c.Code = v
		}
	}
	c.Retail = submatch(retailPattern, p.flat)
	c.Member = submatch(memberPattern, p.flat)
	c.Points = submatch(pointsPattern, p.flat)
	c.Volume = submatch(volumePattern, p.flat)
	if c.Volume == "" {
		c.Volume = submatch(bareVolume, p.flat)
	}
	return c
}

func submatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
