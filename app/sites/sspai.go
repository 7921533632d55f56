package sites

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/provider"
)

const sspaiBaseURL = "https://sspai.com"

type sspaiResponse struct {
	Data *struct {
		List []sspaiArticle `json:"list"`
	} `json:"data"`
}

type sspaiArticle struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Banner     string `json:"banner"`
	CreatedAt  int64  `json:"created_at"`
	ReleasedAt int64  `json:"released_at"`
	IsMember   bool   `json:"member"`
	Author     *struct {
		Nickname string `json:"nickname"`
	} `json:"author"`
}

type sspai struct {
	*categorySite
}

// NewSspai returns 少数派 article lists from its page API.
func NewSspai() provider.Source {
	categories := provider.Categories{
		{Code: "index", Name: "首页推荐", URL: sspaiBaseURL + "/api/v1/article/index/page/get?limit=15&offset=0"},
		{Code: "matrix", Name: "Matrix首页", URL: sspaiBaseURL + "/api/v1/article/matrix/page/get?limit=15&offset=0"},
	}

	return &sspai{&categorySite{
		desc: provider.Descriptor{
			SiteID:  "sspai",
			Name:    "少数派",
			BaseURL: sspaiBaseURL,
			Headers: browserHeaders(map[string]string{
				"Accept":  "application/json, text/plain, */*",
				"Referer": sspaiBaseURL + "/",
			}),
			RSS: provider.RSSConfig{
				Title:       "少数派 - 首页推荐",
				Description: "少数派 - 高效工作，品质生活",
				Link:        sspaiBaseURL,
				Language:    "zh-CN",
				PageSize:    15,
			},
			Cache:      provider.CacheConfig{Enabled: true, TTL: 1800},
			ParamsHelp: "category: " + describeCategories(categories) + ", default: index",
		},
		categories:      categories,
		param:           "category",
		defaultCategory: "index",
		title: func(c provider.Category) string {
			return "少数派 - " + c.Name
		},
		description: func(c provider.Category) string {
			return "少数派" + c.Name + "最新文章"
		},
	}}
}

func (s *sspai) ExtractRaw(body string, params feed.Params) ([]feed.Article, error) {
	var resp sspaiResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, feed.ParseFailure("failed to decode sspai response", err)
	}
	if resp.Data == nil || resp.Data.List == nil {
		return nil, feed.ParseFailure("sspai response has no article list", nil)
	}

	articles := make([]feed.Article, 0, len(resp.Data.List))
	for _, item := range resp.Data.List {
		article := feed.Article{
			Title:   item.Title,
			URL:     fmt.Sprintf("%s/post/%d", sspaiBaseURL, item.ID),
			Content: item.content(),
		}

		published := item.ReleasedAt
		if published == 0 {
			published = item.CreatedAt
		}
		if published > 0 {
			t := time.Unix(published, 0)
			article.PublishedAt = &t
		}
		if item.Author != nil {
			article.Author = item.Author.Nickname
		}
		articles = append(articles, article)
	}

	return articles, nil
}

func (a sspaiArticle) content() string {
	var b strings.Builder

	if a.Banner != "" {
		fmt.Fprintf(&b, `<img src="%s" alt="%s" /><br/>`, html.EscapeString(a.Banner), html.EscapeString(a.Title))
	}
	if a.Author != nil {
		fmt.Fprintf(&b, "<p><strong>作者：</strong>%s</p>", html.EscapeString(a.Author.Nickname))
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(a.Summary))
	}
	if a.IsMember {
		b.WriteString("<p><em>【会员文章】</em></p>")
	}

	return b.String()
}
