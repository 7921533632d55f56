package feed

import (
	"cmp"
	"net/url"
	"strings"
	"time"
)

// Assemble builds the canonical feed from channel metadata and extracted articles.
// Articles missing a title or url are dropped, missing publish dates default to now
// and empty content falls back to the title.
func Assemble(meta Meta, articles []Article, now time.Time) *Feed {
	items := make([]Article, 0, len(articles))
	for _, article := range articles {
		if !article.Valid() {
			continue
		}

		article.Title = strings.TrimSpace(article.Title)
		article.URL = strings.TrimSpace(article.URL)
		article.Content = cmp.Or(article.Content, article.Title)
		if article.PublishedAt == nil {
			published := now
			article.PublishedAt = &published
		}

		items = append(items, article)
		if meta.PageSize > 0 && len(items) == meta.PageSize {
			break
		}
	}

	return &Feed{
		Title:       meta.Title,
		Link:        meta.Link,
		Description: meta.Description,
		Language:    meta.Language,
		ImageURL:    meta.ImageURL,
		SelfPath:    meta.SelfPath,
		BuiltAt:     now,
		Articles:    items,
	}
}

// SelfPath renders the service path of a feed: the site id followed by its
// canonical params as a query string.
func SelfPath(siteID string, params Params) string {
	if len(params) == 0 {
		return siteID
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return siteID + "?" + values.Encode()
}
