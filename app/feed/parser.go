package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Parser turns an RSS, Atom or JSON feed document into canonical articles.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Meta, []Article, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	meta := &Meta{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
	}

	if feed.Image != nil {
		meta.ImageURL = feed.Image.URL
	}

	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		articles = append(articles, p.normalizeItem(item))
	}

	return meta, articles, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Article {
	article := Article{
		Title:   strings.TrimSpace(item.Title),
		URL:     strings.TrimSpace(item.Link),
		Content: cmp.Or(item.Content, item.Description),
		Author:  p.extractAuthor(item),
	}

	if item.PublishedParsed != nil {
		article.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		article.PublishedAt = item.UpdatedParsed
	}

	if len(item.Categories) > 0 {
		article.Category = item.Categories[0]
	}

	if item.Image != nil {
		article.ImageURL = item.Image.URL
	} else {
		for _, enclosure := range item.Enclosures {
			if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") {
				article.ImageURL = enclosure.URL
				break
			}
		}
	}

	return article
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	for _, author := range item.Authors {
		if author != nil {
			if s := p.formatAuthor(author.Name, author.Email); s != "" {
				return s
			}
		}
	}
	if item.Author != nil {
		return p.formatAuthor(item.Author.Name, item.Author.Email)
	}
	return ""
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
