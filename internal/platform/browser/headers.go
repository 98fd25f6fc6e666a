package browser

import "math/rand"

// HeaderProfile is a consistent set of request headers for one device/browser.
type HeaderProfile struct {
	UserAgent       string
	Accept          string
	AcceptLanguage  string
	SecFetchDest    string
	SecFetchMode    string
	SecFetchSite    string
	SecChUa         string
	SecChUaMobile   string
	SecChUaPlatform string
	Mobile          bool
}

type HeaderStrategy string

const (
	StrategyDesktop HeaderStrategy = "desktop"
	StrategyMobile  HeaderStrategy = "mobile"
)

const (
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptLanguage = "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7"
	chromeUa       = `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`
)

var desktopProfiles = []HeaderProfile{
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:          acceptHTML,
		AcceptLanguage:  acceptLanguage,
		SecFetchDest:    "document",
		SecFetchMode:    "navigate",
		SecFetchSite:    "none",
		SecChUa:         chromeUa,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"macOS"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Accept:          acceptHTML,
		AcceptLanguage:  acceptLanguage,
		SecFetchDest:    "document",
		SecFetchMode:    "navigate",
		SecFetchSite:    "none",
		SecChUa:         chromeUa,
		SecChUaMobile:   "?0",
		SecChUaPlatform: `"Windows"`,
	},
}

var mobileProfiles = []HeaderProfile{
	{
		UserAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 18_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Mobile/15E148 Safari/604.1",
		Accept:         acceptHTML,
		AcceptLanguage: acceptLanguage,
		SecFetchDest:   "document",
		SecFetchMode:   "navigate",
		SecFetchSite:   "none",
		SecChUaMobile:  "?1",
		Mobile:         true,
	},
}

// Profile picks a random profile for strategy.
func Profile(strategy HeaderStrategy) HeaderProfile {
	switch strategy {
	case StrategyMobile:
		return mobileProfiles[rand.Intn(len(mobileProfiles))]
	default:
		return desktopProfiles[rand.Intn(len(desktopProfiles))]
	}
}

// Headers renders the profile as extra HTTP headers; the user agent is set separately.
func (p HeaderProfile) Headers() map[string]string {
	h := map[string]string{
		"Accept":                    p.Accept,
		"Accept-Language":           p.AcceptLanguage,
		"Upgrade-Insecure-Requests": "1",
	}
	if p.SecFetchDest != "" {
		h["Sec-Fetch-Dest"] = p.SecFetchDest
		h["Sec-Fetch-Mode"] = p.SecFetchMode
		h["Sec-Fetch-Site"] = p.SecFetchSite
	}
	if p.SecChUa != "" {
		h["Sec-Ch-Ua"] = p.SecChUa
		h["Sec-Ch-Ua-Platform"] = p.SecChUaPlatform
	}
	if p.SecChUaMobile != "" {
		h["Sec-Ch-Ua-Mobile"] = p.SecChUaMobile
	}
	return h
}
