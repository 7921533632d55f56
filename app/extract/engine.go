package extract

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/lysyi3m/rss-nest/app/feed"
)

// Engine maps an HTML document onto articles following a ParseConfig.
// It holds no per-document state and is safe for concurrent use.
type Engine struct {
	content *contentReader
	now     func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		content: newContentReader(),
		now:     time.Now,
	}
}

type matchers struct {
	list, title, link, content, date, image, author, category goquery.Matcher
	custom                                                    map[string]goquery.Matcher
}

// Extract returns the articles found under cfg.ListSelector. A malformed list
// selector is a parse failure; no matching items yields an empty result.
// Items that miss a title or link are skipped, as are items whose processing
// fails for any other reason.
func (e *Engine) Extract(doc *goquery.Document, cfg ParseConfig) ([]feed.Article, error) {
	if doc == nil {
		return nil, feed.ParseFailure("document is nil", nil)
	}
	return e.ExtractSelection(doc.Selection, cfg)
}

func (e *Engine) ExtractSelection(root *goquery.Selection, cfg ParseConfig) ([]feed.Article, error) {
	cfg = cfg.WithDefaults()

	list, err := cascadia.Compile(cfg.ListSelector)
	if err != nil {
		return nil, feed.ParseFailure(fmt.Sprintf("invalid list selector '%s'", cfg.ListSelector), err)
	}

	m := matchers{
		list:     list,
		title:    compileField("title", cfg.TitleSelector),
		link:     compileField("link", cfg.LinkSelector),
		content:  compileField("content", cfg.ContentSelector),
		date:     compileField("date", cfg.DateSelector),
		image:    compileField("image", cfg.ImageSelector),
		author:   compileField("author", cfg.AuthorSelector),
		category: compileField("category", cfg.CategorySelector),
		custom:   make(map[string]goquery.Matcher, len(cfg.CustomSelectors)),
	}
	for name, selector := range cfg.CustomSelectors {
		if matcher := compileField(name, selector); matcher != nil {
			m.custom[name] = matcher
		}
	}

	items := root.FindMatcher(m.list)
	if items.Length() == 0 {
		slog.Debug("No elements matched list selector", "selector", cfg.ListSelector)
		return []feed.Article{}, nil
	}

	now := e.now()
	articles := make([]feed.Article, 0, items.Length())
	items.Each(func(i int, item *goquery.Selection) {
		article, err := e.extractItem(item, cfg, &m, now)
		if err != nil {
			slog.Warn("Failed to extract element", "index", i, "error", err)
			return
		}
		if article != nil {
			articles = append(articles, *article)
		}
	})

	slog.Debug("Extraction completed", "matched", items.Length(), "extracted", len(articles))

	return articles, nil
}

func (e *Engine) extractItem(item *goquery.Selection, cfg ParseConfig, m *matchers, now time.Time) (article *feed.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			article = nil
			err = fmt.Errorf("panic while extracting element: %v", r)
		}
	}()

	title := text(item, m.title)
	if title == "" {
		return nil, nil
	}

	link := attr(item, m.link, cfg.LinkAttribute)
	if link == "" {
		return nil, nil
	}
	if cfg.NeedFullURL {
		link = ResolveURL(link, cfg.URLPrefix)
	}

	article = &feed.Article{
		Title: title,
		URL:   link,
	}

	if m.content != nil {
		if sel := first(item, m.content); sel.Length() > 0 {
			content, err := e.content.read(sel, cfg.ContentMode, cfg.URLPrefix)
			if err != nil {
				return nil, err
			}
			article.Content = content
		}
	}

	if raw := text(item, m.date); raw != "" {
		article.PublishedAt = ParseDate(raw, cfg.DateFormat, now)
		if article.PublishedAt == nil {
			slog.Debug("Failed to parse date", "value", raw, "format", cfg.DateFormat)
		}
	}

	if image := attr(item, m.image, cfg.ImageAttribute); image != "" {
		if cfg.NeedFullURL {
			image = ResolveURL(image, cfg.URLPrefix)
		}
		article.ImageURL = image
	}

	article.Author = text(item, m.author)
	article.Category = text(item, m.category)

	if len(m.custom) > 0 {
		article.Custom = make(map[string]string, len(m.custom))
		for name, matcher := range m.custom {
			if value := text(item, matcher); value != "" {
				article.Custom[name] = value
			}
		}
	}

	return article, nil
}

func compileField(name, selector string) goquery.Matcher {
	if strings.TrimSpace(selector) == "" {
		return nil
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		slog.Warn("Invalid field selector ignored", "field", name, "selector", selector, "error", err)
		return nil
	}
	return matcher
}

func first(item *goquery.Selection, m goquery.Matcher) *goquery.Selection {
	return item.FindMatcher(m).First()
}

func text(item *goquery.Selection, m goquery.Matcher) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(first(item, m).Text())
}

func attr(item *goquery.Selection, m goquery.Matcher, name string) string {
	if m == nil {
		return ""
	}
	value, _ := first(item, m).Attr(name)
	return strings.TrimSpace(value)
}
