package provider

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/rss-nest/app/extract"
	"github.com/lysyi3m/rss-nest/app/feed"
)

const (
	DefaultLanguage = "zh-CN"
	DefaultPageSize = 20
	DefaultCacheTTL = 3 * time.Hour
)

var DefaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
}

type RSSConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Link        string `yaml:"link"`
	Language    string `yaml:"language"`
	PageSize    int    `yaml:"page_size"`
}

type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	TTL        int  `yaml:"ttl"` // seconds
	CacheEmpty bool `yaml:"cache_empty"`
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Enabled: true, TTL: int(DefaultCacheTTL / time.Second)}
}

// TTLDuration returns the configured TTL, falling back to DefaultCacheTTL.
func (c CacheConfig) TTLDuration() time.Duration {
	if c.TTL <= 0 {
		return DefaultCacheTTL
	}
	return time.Duration(c.TTL) * time.Second
}

// Descriptor is the static description of a site. It is never modified after
// the provider is registered.
type Descriptor struct {
	SiteID     string
	Name       string
	BaseURL    string
	Headers    map[string]string
	Charset    string
	Parse      *extract.ParseConfig
	RSS        RSSConfig
	Cache      CacheConfig
	ParamsHelp string
	Filters    []feed.Filter
}

// Request is the resolved outbound fetch of a provider run.
type Request struct {
	URL     string
	Headers map[string]string // merged over the descriptor headers
}

// Source is the per-site capability set the pipeline is composed from.
type Source interface {
	Descriptor() *Descriptor
	BuildRequest(params feed.Params) (Request, error)
	Title(params feed.Params) string
	Description(params feed.Params) string
}

type ParamValidator interface {
	ValidateParams(params feed.Params) bool
}

// DocumentExtractor replaces the declarative extraction for HTML sites.
type DocumentExtractor interface {
	ExtractDocument(doc *goquery.Document, params feed.Params) ([]feed.Article, error)
}

// RawExtractor handles non-HTML bodies such as JSON APIs or feed documents.
type RawExtractor interface {
	ExtractRaw(body string, params feed.Params) ([]feed.Article, error)
}

// Fetcher is the outbound HTTP collaborator.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string, forcedCharset string) (string, error)
}

type Extractor interface {
	Extract(doc *goquery.Document, cfg extract.ParseConfig) ([]feed.Article, error)
}

type Category struct {
	Code string
	Name string
	URL  string
}

// Categories is an ordered category table.
type Categories []Category

// Lookup finds a category by code, ignoring case.
func (c Categories) Lookup(code string) (Category, error) {
	for _, category := range c {
		if strings.EqualFold(category.Code, code) {
			return category, nil
		}
	}
	return Category{}, feed.InvalidParameter("unknown category '%s', supported: %s", code, strings.Join(c.Codes(), ", "))
}

func (c Categories) Codes() []string {
	codes := make([]string, 0, len(c))
	for _, category := range c {
		codes = append(codes, category.Code)
	}
	return codes
}
