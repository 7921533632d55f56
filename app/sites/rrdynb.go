package sites

import (
	"github.com/lysyi3m/rss-nest/app/extract"
	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/provider"
)

const rrdynbBaseURL = "https://www.rrdynb.com"

type rrdynb struct {
	*categorySite
}

// NewRrdynb returns the 人人影视网 listing. Unlike other category tables its
// category codes are matched exactly.
func NewRrdynb() provider.Source {
	categories := provider.Categories{
		{Code: "movie", Name: "电影", URL: rrdynbBaseURL + "/movie/"},
		{Code: "dianshiju", Name: "电视剧", URL: rrdynbBaseURL + "/dianshiju/"},
		{Code: "zongyi", Name: "综艺", URL: rrdynbBaseURL + "/zongyi/"},
		{Code: "dongman", Name: "动漫", URL: rrdynbBaseURL + "/dongman/"},
	}

	parse := extract.DefaultParseConfig()
	parse.ListSelector = "li.pure-g.shadow"
	parse.TitleSelector = "h2 a"
	parse.LinkSelector = "h2 a"
	parse.ContentSelector = ".brief"
	parse.ContentMode = extract.ContentModeHTML
	parse.DateSelector = ".tags"
	parse.DateFormat = "yyyy-MM-dd"
	parse.ImageSelector = ".pure-u-5-24 img"
	parse.ImageAttribute = "data-original"
	parse.NeedFullURL = true
	parse.URLPrefix = rrdynbBaseURL
	parse.CustomSelectors = map[string]string{"director": ".brief"}

	return &rrdynb{&categorySite{
		desc: provider.Descriptor{
			SiteID:  "rrdynb",
			Name:    "人人影视网",
			BaseURL: rrdynbBaseURL,
			Headers: browserHeaders(nil),
			Parse:   &parse,
			RSS: provider.RSSConfig{
				Title:       "人人影视网RSS订阅",
				Description: "人人影视网最新内容",
				Link:        rrdynbBaseURL,
				Language:    "zh-CN",
				PageSize:    20,
			},
			Cache:      provider.CacheConfig{Enabled: true, TTL: 10800},
			ParamsHelp: "category: " + describeCategories(categories) + ", default: movie",
		},
		categories:      categories,
		param:           "category",
		defaultCategory: "movie",
		title: func(c provider.Category) string {
			return "人人影视网 - " + c.Name
		},
		description: func(c provider.Category) string {
			return "人人影视网最新" + c.Name + "更新"
		},
	}}
}

func (s *rrdynb) ValidateParams(params feed.Params) bool {
	code := params.Get("category", "")
	if code == "" {
		return true
	}
	for _, c := range s.categories {
		if c.Code == code {
			return true
		}
	}
	return false
}
