package sites

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/provider"
)

const (
	weiboAPIURL    = "https://m.weibo.cn/api/container/getIndex?containerid=106003type%3D25%26t%3D3%26disable_hot%3D1%26filter_type%3Drealtimehot"
	weiboWebURL    = "https://s.weibo.com/top/summary"
	weiboSearchURL = "https://s.weibo.com/weibo?q="
)

// looseString accepts JSON strings and numbers. The hot search API reports
// desc_extr as either, depending on the entry.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(data)
	return nil
}

type weiboResponse struct {
	Data *struct {
		Cards []struct {
			CardType  int               `json:"card_type"`
			CardGroup []weiboHotSearch `json:"card_group"`
		} `json:"cards"`
	} `json:"data"`
}

type weiboHotSearch struct {
	Desc     string      `json:"desc"`
	DescExtr looseString `json:"desc_extr"`
	TitleSub string      `json:"title_sub"`
	IconDesc string      `json:"icon_desc"`
	Rank     *int        `json:"rank"`
}

type weibo struct {
	desc provider.Descriptor
	now  func() time.Time
}

// NewWeibo returns the realtime 微博热搜 board. It takes no parameters.
func NewWeibo() provider.Source {
	return &weibo{
		desc: provider.Descriptor{
			SiteID:  "weibo",
			Name:    "微博热搜",
			BaseURL: weiboWebURL,
			Headers: map[string]string{
				"User-Agent":      "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Mobile/15E148 Safari/604.1",
				"Accept":          "application/json, text/plain, */*",
				"Referer":         weiboWebURL + "?cate=realtimehot",
				"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
			},
			RSS: provider.RSSConfig{
				Title:       "微博热搜榜",
				Description: "微博实时热搜榜单",
				Link:        weiboWebURL,
				Language:    "zh-CN",
				PageSize:    50,
			},
			Cache:      provider.CacheConfig{Enabled: true, TTL: 300},
			ParamsHelp: "no parameters, returns the realtime hot search board",
		},
		now: time.Now,
	}
}

func (w *weibo) Descriptor() *provider.Descriptor {
	return &w.desc
}

func (w *weibo) BuildRequest(params feed.Params) (provider.Request, error) {
	return provider.Request{URL: weiboAPIURL}, nil
}

func (w *weibo) Title(params feed.Params) string {
	return w.desc.RSS.Title
}

func (w *weibo) Description(params feed.Params) string {
	return w.desc.RSS.Description
}

func (w *weibo) ExtractRaw(body string, params feed.Params) ([]feed.Article, error) {
	var resp weiboResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, feed.ParseFailure("failed to decode weibo response", err)
	}
	if resp.Data == nil || resp.Data.Cards == nil {
		return nil, feed.ParseFailure("weibo response has no cards", nil)
	}

	var entries []weiboHotSearch
	for _, card := range resp.Data.Cards {
		if len(card.CardGroup) > 0 {
			entries = card.CardGroup
			break
		}
	}

	now := w.now()
	articles := make([]feed.Article, 0, len(entries))
	for _, entry := range entries {
		if entry.Desc == "" {
			continue
		}
		published := now
		articles = append(articles, feed.Article{
			Title:       entry.title(),
			URL:         weiboSearchURL + url.QueryEscape(entry.Desc),
			Content:     entry.content(),
			PublishedAt: &published,
			Category:    entry.IconDesc,
		})
	}

	return articles, nil
}

func (e weiboHotSearch) title() string {
	var b strings.Builder
	if e.Rank != nil {
		fmt.Fprintf(&b, "%d. ", *e.Rank)
	}
	b.WriteString(e.Desc)
	if e.IconDesc != "" {
		b.WriteString(" [" + e.IconDesc + "]")
	}
	return b.String()
}

func (e weiboHotSearch) content() string {
	var b strings.Builder

	fmt.Fprintf(&b, "<h3>%s</h3>", html.EscapeString(e.Desc))
	if e.IconDesc != "" {
		fmt.Fprintf(&b, "<p><strong>热度：</strong>%s</p>", html.EscapeString(e.IconDesc))
	}
	if e.Rank != nil {
		fmt.Fprintf(&b, "<p><strong>排名：</strong>第 %d 位</p>", *e.Rank)
	}
	if e.TitleSub != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(e.TitleSub))
	}
	if e.DescExtr != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(string(e.DescExtr)))
	}

	return b.String()
}
