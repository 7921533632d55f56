package feed

import (
	"sort"
	"strings"
	"time"
)

// Params carries the per-request parameters of a feed (category, language, ...).
type Params map[string]string

// Canonical renders params as key=value pairs sorted by key and joined with '&'.
// Two param sets with equal content always canonicalize to the same string.
func (p Params) Canonical() string {
	if len(p) == 0 {
		return ""
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+p[k])
	}
	return strings.Join(pairs, "&")
}

func (p Params) Get(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

type Article struct {
	Title       string
	URL         string
	Content     string
	PublishedAt *time.Time
	ImageURL    string
	Author      string
	Category    string
	Custom      map[string]string
}

// Valid reports whether the article carries the required title and url.
func (a Article) Valid() bool {
	return strings.TrimSpace(a.Title) != "" && strings.TrimSpace(a.URL) != ""
}

// Meta describes the channel level data of a feed before assembly.
type Meta struct {
	Title       string
	Link        string
	Description string
	Language    string
	ImageURL    string
	SelfPath    string // path of the feed on this service, e.g. "ithome?category=it"
	PageSize    int
}

// Feed is the canonical, immutable result of a provider run.
type Feed struct {
	Title       string
	Link        string
	Description string
	Language    string
	ImageURL    string
	SelfPath    string
	BuiltAt     time.Time
	Articles    []Article
}

// Configuration types

type Filter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
