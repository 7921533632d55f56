package extract

import (
	"net/url"
	"strings"
)

// ResolveURL joins a relative link with prefix using exactly one '/' between
// them. Links that carry any scheme (https:, data:, mailto:, ...) are returned
// as is, and protocol-relative links get an https scheme.
func ResolveURL(link, prefix string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}

	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	if u, err := url.Parse(link); err == nil && u.Scheme != "" {
		return link
	}
	if prefix == "" {
		return link
	}

	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(link, "/")
}
