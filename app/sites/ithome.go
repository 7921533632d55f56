package sites

import (
	"fmt"

	"github.com/lysyi3m/rss-nest/app/extract"
	"github.com/lysyi3m/rss-nest/app/provider"
)

var ithomeCategories = provider.Categories{
	{Code: "it", Name: "IT资讯"},
	{Code: "soft", Name: "软件之家"},
	{Code: "win10", Name: "Win10之家"},
	{Code: "win11", Name: "Win11之家"},
	{Code: "iphone", Name: "iPhone之家"},
	{Code: "ipad", Name: "iPad之家"},
	{Code: "android", Name: "Android之家"},
	{Code: "digi", Name: "数码之家"},
	{Code: "next", Name: "下一代"},
}

// NewIthome returns the IT之家 news listing, one sub-domain per category.
func NewIthome() provider.Source {
	categories := make(provider.Categories, 0, len(ithomeCategories))
	for _, c := range ithomeCategories {
		c.URL = fmt.Sprintf("https://%s.ithome.com/", c.Code)
		categories = append(categories, c)
	}

	parse := extract.DefaultParseConfig()
	parse.ListSelector = "#list > div.fl > ul > li"
	parse.TitleSelector = "div > h2 > a"
	parse.LinkSelector = "div > h2 > a"
	parse.ContentSelector = "div > p.desc"
	parse.ContentMode = extract.ContentModeText
	parse.DateSelector = "div > p.desc > span:first-child"
	parse.DateFormat = "yyyy/M/d HH:mm:ss"
	parse.ImageSelector = "a > img"
	parse.NeedFullURL = false

	return &categorySite{
		desc: provider.Descriptor{
			SiteID:  "ithome",
			Name:    "IT之家",
			BaseURL: "https://www.ithome.com",
			Headers: browserHeaders(nil),
			Parse:   &parse,
			RSS: provider.RSSConfig{
				Title:       "IT之家RSS订阅",
				Description: "IT之家 - 快速全面客观的科技新闻",
				Link:        "https://www.ithome.com",
				Language:    "zh-CN",
				PageSize:    30,
			},
			Cache:      provider.CacheConfig{Enabled: true, TTL: 1800},
			ParamsHelp: "category: " + describeCategories(categories) + ", default: it",
		},
		categories:      categories,
		param:           "category",
		defaultCategory: "it",
		title: func(c provider.Category) string {
			return "IT之家 - " + c.Name
		},
		description: func(c provider.Category) string {
			return "IT之家" + c.Name + "频道最新资讯"
		},
	}
}
