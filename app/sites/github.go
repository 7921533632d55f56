package sites

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/provider"
)

const githubTrendingURL = "https://github.com/trending"

var githubPeriods = provider.Categories{
	{Code: "daily", Name: "今日趋势"},
	{Code: "weekly", Name: "本周趋势"},
	{Code: "monthly", Name: "本月趋势"},
}

type githubTrending struct {
	desc provider.Descriptor
}

// NewGithubTrending returns GitHub trending repositories, optionally narrowed
// to one language.
func NewGithubTrending() provider.Source {
	return &githubTrending{
		desc: provider.Descriptor{
			SiteID:  "github",
			Name:    "GitHub Trending",
			BaseURL: githubTrendingURL,
			Headers: browserHeaders(map[string]string{"Referer": "https://github.com/"}),
			RSS: provider.RSSConfig{
				Title:       "GitHub Trending RSS订阅",
				Description: "GitHub趋势仓库",
				Link:        githubTrendingURL,
				Language:    "en",
				PageSize:    25,
			},
			Cache: provider.CacheConfig{Enabled: true, TTL: 3600},
			ParamsHelp: "since: " + describeCategories(githubPeriods) + ", default: daily\n" +
				"language: programming language such as go, python or javascript, default: all",
		},
	}
}

func (g *githubTrending) Descriptor() *provider.Descriptor {
	return &g.desc
}

func (g *githubTrending) ValidateParams(params feed.Params) bool {
	since := params.Get("since", "")
	if since == "" {
		return true
	}
	_, err := githubPeriods.Lookup(since)
	return err == nil
}

func (g *githubTrending) BuildRequest(params feed.Params) (provider.Request, error) {
	period, err := githubPeriods.Lookup(params.Get("since", "daily"))
	if err != nil {
		return provider.Request{}, err
	}

	u := githubTrendingURL
	if language := params.Get("language", ""); language != "" {
		u += "/" + url.PathEscape(language)
	}
	return provider.Request{URL: u + "?since=" + period.Code}, nil
}

func (g *githubTrending) periodName(params feed.Params) string {
	period, err := githubPeriods.Lookup(params.Get("since", "daily"))
	if err != nil {
		return githubPeriods[0].Name
	}
	return period.Name
}

func (g *githubTrending) Title(params feed.Params) string {
	if language := params.Get("language", ""); language != "" {
		return "GitHub Trending - " + language + " - " + g.periodName(params)
	}
	return "GitHub Trending - " + g.periodName(params)
}

func (g *githubTrending) Description(params feed.Params) string {
	name := strings.TrimSuffix(g.periodName(params), "趋势")
	if language := params.Get("language", ""); language != "" {
		return "GitHub " + language + " " + name + "趋势仓库"
	}
	return "GitHub " + name + "趋势仓库"
}

type githubRepo struct {
	name, url, description, language, stars, forks, periodStars string
}

func (g *githubTrending) ExtractDocument(doc *goquery.Document, params feed.Params) ([]feed.Article, error) {
	var articles []feed.Article

	doc.Find("article.Box-row").Each(func(i int, row *goquery.Selection) {
		link := row.Find("h2 a").First()
		href, ok := link.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}

		repo := githubRepo{
			name:        strings.TrimPrefix(href, "/"),
			url:         "https://github.com" + href,
			description: strings.TrimSpace(row.Find("p.col-9").First().Text()),
			language:    strings.TrimSpace(row.Find("span[itemprop=programmingLanguage]").First().Text()),
			stars:       strings.TrimSpace(row.Find("svg.octicon-star").First().Parent().Text()),
			forks:       strings.TrimSpace(row.Find("svg.octicon-repo-forked").First().Parent().Text()),
			periodStars: strings.TrimSpace(row.Find("span.d-inline-block.float-sm-right").First().Text()),
		}

		articles = append(articles, feed.Article{
			Title:    repo.name,
			URL:      repo.url,
			Content:  repo.content(),
			Category: repo.language,
			Custom: map[string]string{
				"stars": repo.stars,
				"forks": repo.forks,
			},
		})
	})

	return articles, nil
}

func (r githubRepo) content() string {
	var b strings.Builder

	fmt.Fprintf(&b, `<h3><a href="%s">%s</a></h3>`, html.EscapeString(r.url), html.EscapeString(r.name))
	if r.description != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(r.description))
	}

	var stats []string
	if r.language != "" {
		stats = append(stats, "<strong>语言：</strong>"+html.EscapeString(r.language))
	}
	if r.stars != "" {
		stats = append(stats, "<strong>⭐ Stars：</strong>"+html.EscapeString(r.stars))
	}
	if r.forks != "" {
		stats = append(stats, "<strong>🍴 Forks：</strong>"+html.EscapeString(r.forks))
	}
	if r.periodStars != "" {
		stats = append(stats, "<strong>📈 "+html.EscapeString(r.periodStars)+"</strong>")
	}
	b.WriteString("<p>" + strings.Join(stats, " | ") + "</p>")

	return b.String()
}
