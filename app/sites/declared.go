package sites

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/rss-nest/app/extract"
	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/provider"
)

const (
	SourceHTML = "html"
	SourceFeed = "feed"
)

// SiteConfig is the YAML declaration of a site.
type SiteConfig struct {
	ID              string                `yaml:"id"`
	Name            string                `yaml:"name"`
	URL             string                `yaml:"url"` // may contain {category} and {page}
	BaseURL         string                `yaml:"base_url"`
	Headers         map[string]string     `yaml:"headers"`
	Charset         string                `yaml:"charset"`
	Source          string                `yaml:"source"`
	Parse           *extract.ParseConfig  `yaml:"parse"`
	Categories      []CategoryConfig      `yaml:"categories"`
	DefaultCategory string                `yaml:"default_category"`
	RSS             provider.RSSConfig    `yaml:"rss"`
	Cache           *provider.CacheConfig `yaml:"cache"`
	Filters         []feed.Filter         `yaml:"filters"`
	Warm            *WarmConfig           `yaml:"warm"`
	Disabled        bool                  `yaml:"disabled"`
}

type CategoryConfig struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// WarmConfig lists the parameter sets refreshed ahead of requests on a cron
// schedule.
type WarmConfig struct {
	Schedule string        `yaml:"schedule"`
	Params   []feed.Params `yaml:"params"`
}

// WarmTarget is one feed to keep warm.
type WarmTarget struct {
	SiteID   string
	Schedule string
	Params   feed.Params
}

func (c *SiteConfig) setDefaults() {
	if c.Source == "" {
		c.Source = SourceHTML
	}
	if c.BaseURL == "" {
		if u, err := url.Parse(c.URL); err == nil && u.Host != "" {
			c.BaseURL = u.Scheme + "://" + u.Host
		}
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	if c.RSS.Title == "" {
		c.RSS.Title = c.Name
	}
	if c.Parse != nil {
		parse := c.Parse.WithDefaults()
		if parse.URLPrefix == "" {
			parse.URLPrefix = c.BaseURL
		}
		c.Parse = &parse
	}
	if c.DefaultCategory == "" && len(c.Categories) > 0 {
		c.DefaultCategory = c.Categories[0].Code
	}
}

func (c *SiteConfig) validate() error {
	if c.ID == "" {
		return fmt.Errorf("site id is required")
	}
	if c.URL == "" && !c.categoriesHaveURLs() {
		return fmt.Errorf("site URL is required")
	}
	if strings.Contains(c.URL, "{category}") && len(c.Categories) == 0 {
		return fmt.Errorf("URL uses {category} but no categories are declared")
	}

	switch c.Source {
	case SourceHTML:
		if c.Parse == nil {
			return fmt.Errorf("parse config is required for html sites")
		}
		if err := c.Parse.Validate(); err != nil {
			return fmt.Errorf("invalid parse config: %w", err)
		}
	case SourceFeed:
	default:
		return fmt.Errorf("unknown source type: %s", c.Source)
	}

	for i, category := range c.Categories {
		if category.Code == "" {
			return fmt.Errorf("category at index %d has no code", i)
		}
	}

	for i, filter := range c.Filters {
		if !feed.FilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	if c.Cache != nil && c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must be non-negative")
	}
	if c.RSS.PageSize < 0 {
		return fmt.Errorf("page size must be non-negative")
	}

	if c.Warm != nil && c.Warm.Schedule != "" {
		if _, err := cron.ParseStandard(c.Warm.Schedule); err != nil {
			return fmt.Errorf("invalid warm schedule: %w", err)
		}
	}

	return nil
}

func (c *SiteConfig) categoriesHaveURLs() bool {
	if len(c.Categories) == 0 {
		return false
	}
	for _, category := range c.Categories {
		if category.URL == "" {
			return false
		}
	}
	return true
}

// WarmTargets expands the warm declaration into one target per parameter
// set. A declaration without parameter sets warms the default feed.
func (c *SiteConfig) WarmTargets() []WarmTarget {
	if c.Warm == nil || c.Warm.Schedule == "" {
		return nil
	}
	if len(c.Warm.Params) == 0 {
		return []WarmTarget{{SiteID: c.ID, Schedule: c.Warm.Schedule}}
	}

	targets := make([]WarmTarget, 0, len(c.Warm.Params))
	for _, params := range c.Warm.Params {
		targets = append(targets, WarmTarget{SiteID: c.ID, Schedule: c.Warm.Schedule, Params: params})
	}
	return targets
}

// NewSource builds the provider source described by the configuration.
func (c *SiteConfig) NewSource() provider.Source {
	categories := make(provider.Categories, 0, len(c.Categories))
	for _, category := range c.Categories {
		categories = append(categories, provider.Category{
			Code: category.Code,
			Name: category.Name,
			URL:  category.URL,
		})
	}

	cache := provider.DefaultCacheConfig()
	if c.Cache != nil {
		cache = *c.Cache
	}

	help := "no parameters"
	if len(categories) > 0 {
		help = "category: " + describeCategories(categories) + ", default: " + c.DefaultCategory
	}
	if strings.Contains(c.URL, "{page}") {
		help += "\npage: page number, default: 1"
	}

	site := &declaredSite{
		desc: provider.Descriptor{
			SiteID:     c.ID,
			Name:       c.Name,
			BaseURL:    c.BaseURL,
			Headers:    c.Headers,
			Charset:    c.Charset,
			Parse:      c.Parse,
			RSS:        c.RSS,
			Cache:      cache,
			ParamsHelp: help,
			Filters:    c.Filters,
		},
		urlTemplate:     c.URL,
		categories:      categories,
		defaultCategory: c.DefaultCategory,
	}

	if c.Source == SourceFeed {
		return &declaredFeedSite{declaredSite: site, parser: feed.NewParser()}
	}
	return site
}

type declaredSite struct {
	desc            provider.Descriptor
	urlTemplate     string
	categories      provider.Categories
	defaultCategory string
}

func (s *declaredSite) Descriptor() *provider.Descriptor {
	return &s.desc
}

func (s *declaredSite) ValidateParams(params feed.Params) bool {
	if code := params.Get("category", ""); code != "" {
		if len(s.categories) == 0 {
			return false
		}
		if _, err := s.categories.Lookup(code); err != nil {
			return false
		}
	}
	if page := params.Get("page", ""); page != "" {
		if n, err := strconv.Atoi(page); err != nil || n < 1 {
			return false
		}
	}
	return true
}

func (s *declaredSite) category(params feed.Params) (provider.Category, bool, error) {
	if len(s.categories) == 0 {
		return provider.Category{}, false, nil
	}
	category, err := s.categories.Lookup(params.Get("category", s.defaultCategory))
	if err != nil {
		return provider.Category{}, false, err
	}
	return category, true, nil
}

func (s *declaredSite) BuildRequest(params feed.Params) (provider.Request, error) {
	category, ok, err := s.category(params)
	if err != nil {
		return provider.Request{}, err
	}

	target := s.urlTemplate
	if ok && category.URL != "" {
		target = category.URL
	}
	target = strings.ReplaceAll(target, "{category}", url.PathEscape(category.Code))
	target = strings.ReplaceAll(target, "{page}", url.PathEscape(params.Get("page", "1")))

	return provider.Request{URL: target}, nil
}

func (s *declaredSite) Title(params feed.Params) string {
	category, ok, err := s.category(params)
	if err != nil || !ok || category.Name == "" {
		return s.desc.RSS.Title
	}
	return s.desc.RSS.Title + " - " + category.Name
}

func (s *declaredSite) Description(params feed.Params) string {
	if s.desc.RSS.Description != "" {
		return s.desc.RSS.Description
	}
	return s.Title(params)
}

// declaredFeedSite re-publishes an existing RSS, Atom or JSON feed.
type declaredFeedSite struct {
	*declaredSite
	parser *feed.Parser
}

func (s *declaredFeedSite) ExtractRaw(body string, params feed.Params) ([]feed.Article, error) {
	_, articles, err := s.parser.Run([]byte(body))
	if err != nil {
		return nil, feed.ParseFailure("failed to parse feed document", err)
	}
	return articles, nil
}
