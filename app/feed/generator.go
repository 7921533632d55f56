package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"path"
	"strings"
	"time"
)

type Generator struct {
	baseURL string
	version string
}

// NewGenerator returns an RSS 2.0 writer. baseURL is the public address of the
// service and is used for the atom:link self reference; it may be empty.
func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

func (g *Generator) Run(feed *Feed) (string, error) {
	if feed == nil {
		return "", fmt.Errorf("feed is nil")
	}
	feed = cleanFeed(feed)

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", feed.Title, 4)
	g.writeElement(&buf, "link", feed.Link, 4)
	description := feed.Description
	if description == "" {
		description = fmt.Sprintf("Generated feed for %s", feed.Link)
	}
	g.writeElement(&buf, "description", description, 4)

	if g.baseURL != "" && feed.SelfPath != "" {
		selfLink := fmt.Sprintf("%s/feeds/%s", g.baseURL, feed.SelfPath)
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(selfLink)))
	}

	lastBuildDate := feed.BuiltAt
	if lastBuildDate.IsZero() {
		lastBuildDate = time.Now().In(time.Local)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("RSSNest/%s", g.version), 4)
	g.writeElement(&buf, "language", feed.Language, 4)

	if feed.ImageURL != "" {
		buf.WriteString("    <image>\n")
		g.writeElement(&buf, "url", feed.ImageURL, 6)
		g.writeElement(&buf, "title", feed.Title, 6)
		g.writeElement(&buf, "link", feed.Link, 6)
		buf.WriteString("    </image>\n")
	}

	for _, article := range feed.Articles {
		g.writeItem(&buf, article)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, article Article) {
	buf.WriteString("    <item>\n")

	g.writeElement(buf, "title", article.Title, 6)
	g.writeElement(buf, "link", article.URL, 6)

	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(article.URL)))
	xml.EscapeText(buf, []byte(article.URL))
	buf.WriteString("</guid>\n")

	content := article.Content
	if content == "" {
		content = article.Title
	}
	g.writeElement(buf, "description", content, 6)

	if content != article.Title && !strings.Contains(content, "]]>") {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(content)
		buf.WriteString("]]></content:encoded>\n")
	}

	if article.PublishedAt != nil {
		g.writeElement(buf, "pubDate", article.PublishedAt.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "author", article.Author, 6)
	g.writeElement(buf, "category", article.Category, 6)

	if article.ImageURL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(article.ImageURL),
			imageMimeType(article.ImageURL)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// cleanXML drops runes outside the XML 1.0 Char production. Scraped text and
// API payloads carry stray control characters that would make the document
// unparsable.
func cleanXML(s string) string {
	if strings.IndexFunc(s, func(r rune) bool { return !isXMLChar(r) }) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, s)
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x09 || r == 0x0A || r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// cleanFeed returns a copy of f with every serialized string made XML-safe.
func cleanFeed(f *Feed) *Feed {
	out := *f
	out.Title = cleanXML(f.Title)
	out.Link = cleanXML(f.Link)
	out.Description = cleanXML(f.Description)
	out.Language = cleanXML(f.Language)
	out.ImageURL = cleanXML(f.ImageURL)
	out.SelfPath = cleanXML(f.SelfPath)

	out.Articles = make([]Article, len(f.Articles))
	for i, a := range f.Articles {
		a.Title = cleanXML(a.Title)
		a.URL = cleanXML(a.URL)
		a.Content = cleanXML(a.Content)
		a.ImageURL = cleanXML(a.ImageURL)
		a.Author = cleanXML(a.Author)
		a.Category = cleanXML(a.Category)
		out.Articles[i] = a
	}
	return &out
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}

func imageMimeType(imageURL string) string {
	p := imageURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}
