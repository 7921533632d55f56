package sites

import (
	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/provider"
)

// categorySite is the common shape of sites whose feed is chosen by a single
// category parameter looked up in a fixed table.
type categorySite struct {
	desc            provider.Descriptor
	categories      provider.Categories
	param           string
	defaultCategory string
	title           func(provider.Category) string
	description     func(provider.Category) string
}

func (s *categorySite) Descriptor() *provider.Descriptor {
	return &s.desc
}

func (s *categorySite) category(params feed.Params) (provider.Category, error) {
	return s.categories.Lookup(params.Get(s.param, s.defaultCategory))
}

// ValidateParams accepts a missing category, which selects the default one.
func (s *categorySite) ValidateParams(params feed.Params) bool {
	if params.Get(s.param, "") == "" {
		return true
	}
	_, err := s.category(params)
	return err == nil
}

func (s *categorySite) BuildRequest(params feed.Params) (provider.Request, error) {
	category, err := s.category(params)
	if err != nil {
		return provider.Request{}, err
	}
	return provider.Request{URL: category.URL}, nil
}

func (s *categorySite) Title(params feed.Params) string {
	category, err := s.category(params)
	if err != nil || s.title == nil {
		return s.desc.RSS.Title
	}
	return s.title(category)
}

func (s *categorySite) Description(params feed.Params) string {
	category, err := s.category(params)
	if err != nil || s.description == nil {
		return s.desc.RSS.Description
	}
	return s.description(category)
}
