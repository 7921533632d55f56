package sites

import (
	"maps"
	"strings"

	"github.com/lysyi3m/rss-nest/app/provider"
)

func browserHeaders(extra map[string]string) map[string]string {
	headers := maps.Clone(provider.DefaultHeaders)
	maps.Copy(headers, extra)
	return headers
}

func describeCategories(categories provider.Categories) string {
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		parts = append(parts, c.Code+"-"+c.Name)
	}
	return strings.Join(parts, ", ")
}
