package extract

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// ContentExtractor reduces a markup fragment to its readable text.
type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

func (e *ContentExtractor) Run(markup string, pageURL *url.URL) (string, error) {
	if strings.TrimSpace(markup) == "" {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(markup), pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"title", article.Title,
		"content_length", len(content))

	return content, nil
}

type contentReader struct {
	policy      *bluemonday.Policy
	readability *ContentExtractor
}

func newContentReader() *contentReader {
	return &contentReader{
		policy:      bluemonday.UGCPolicy(),
		readability: NewContentExtractor(),
	}
}

func (r *contentReader) read(sel *goquery.Selection, mode ContentMode, prefix string) (string, error) {
	switch mode {
	case ContentModeText:
		return strings.TrimSpace(sel.Text()), nil

	case ContentModeReadability:
		markup, err := goquery.OuterHtml(sel)
		if err != nil {
			return "", fmt.Errorf("failed to render content: %w", err)
		}
		var pageURL *url.URL
		if prefix != "" {
			pageURL, _ = url.Parse(prefix)
		}
		content, err := r.readability.Run(markup, pageURL)
		if err != nil {
			// Fragments too small for readability still carry useful text.
			return strings.TrimSpace(sel.Text()), nil
		}
		return content, nil

	default:
		markup, err := sel.Html()
		if err != nil {
			return "", fmt.Errorf("failed to render content: %w", err)
		}
		return strings.TrimSpace(r.policy.Sanitize(markup)), nil
	}
}
