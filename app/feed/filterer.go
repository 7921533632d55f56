package feed

import (
	"fmt"
	"log/slog"
	"strings"
)

var FilterFields = map[string]bool{
	"title":    true,
	"content":  true,
	"author":   true,
	"link":     true,
	"category": true,
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops articles rejected by the include/exclude filters.
func (f *Filterer) Run(articles []Article, filters []Filter) []Article {
	if len(filters) == 0 {
		return articles
	}

	kept := make([]Article, 0, len(articles))
	for _, article := range articles {
		if isFiltered, reason := f.applyFilters(article, filters); isFiltered {
			slog.Debug("Article filtered", "url", article.URL, "reason", reason)
			continue
		}
		kept = append(kept, article)
	}

	return kept
}

func (f *Filterer) applyFilters(article Article, filters []Filter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(article, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(article Article, field string) string {
	switch field {
	case "title":
		return article.Title
	case "content":
		return article.Content
	case "author":
		return article.Author
	case "link":
		return article.URL
	case "category":
		return article.Category
	default:
		return ""
	}
}
