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

type v2exTopic struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	URL             string `json:"url"`
	Content         string `json:"content"`
	ContentRendered string `json:"content_rendered"`
	Replies         int    `json:"replies"`
	Created         int64  `json:"created"`
	Member          *struct {
		Username string `json:"username"`
	} `json:"member"`
	Node *struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	} `json:"node"`
}

type v2ex struct {
	*categorySite
}

// NewV2ex returns the V2EX topic lists served by its public JSON API.
func NewV2ex() provider.Source {
	categories := provider.Categories{
		{Code: "hot", Name: "最热主题", URL: "https://www.v2ex.com/api/topics/hot.json"},
		{Code: "latest", Name: "最新主题", URL: "https://www.v2ex.com/api/topics/latest.json"},
	}

	return &v2ex{&categorySite{
		desc: provider.Descriptor{
			SiteID:  "v2ex",
			Name:    "V2EX",
			BaseURL: "https://www.v2ex.com",
			Headers: browserHeaders(map[string]string{"Accept": "application/json"}),
			RSS: provider.RSSConfig{
				Title:       "V2EX - 社区热门",
				Description: "V2EX 创意工作者社区",
				Link:        "https://www.v2ex.com",
				Language:    "zh-CN",
				PageSize:    20,
			},
			Cache:      provider.CacheConfig{Enabled: true, TTL: 600},
			ParamsHelp: "category: " + describeCategories(categories) + ", default: hot",
		},
		categories:      categories,
		param:           "category",
		defaultCategory: "hot",
		title: func(c provider.Category) string {
			return "V2EX - " + c.Name
		},
		description: func(c provider.Category) string {
			return "V2EX " + c.Name + "内容"
		},
	}}
}

func (s *v2ex) ExtractRaw(body string, params feed.Params) ([]feed.Article, error) {
	var topics []v2exTopic
	if err := json.Unmarshal([]byte(body), &topics); err != nil {
		return nil, feed.ParseFailure("failed to decode v2ex response", err)
	}

	articles := make([]feed.Article, 0, len(topics))
	for _, topic := range topics {
		article := feed.Article{
			Title:   topic.Title,
			URL:     topic.URL,
			Content: topic.content(),
		}
		if topic.Created > 0 {
			created := time.Unix(topic.Created, 0)
			article.PublishedAt = &created
		}
		if topic.Member != nil {
			article.Author = topic.Member.Username
		}
		if topic.Node != nil {
			article.Category = topic.Node.Title
		}
		articles = append(articles, article)
	}

	return articles, nil
}

func (t v2exTopic) content() string {
	var b strings.Builder

	if t.Member != nil {
		fmt.Fprintf(&b, "<p><strong>作者：</strong>%s</p>", html.EscapeString(t.Member.Username))
	}
	if t.Node != nil {
		fmt.Fprintf(&b, "<p><strong>节点：</strong>%s</p>", html.EscapeString(t.Node.Title))
	}
	if t.Replies > 0 {
		fmt.Fprintf(&b, "<p><strong>回复数：</strong>%d</p>", t.Replies)
	}

	switch {
	case t.ContentRendered != "":
		b.WriteString("<div>" + t.ContentRendered + "</div>")
	case t.Content != "":
		b.WriteString("<p>" + html.EscapeString(t.Content) + "</p>")
	}

	return b.String()
}
