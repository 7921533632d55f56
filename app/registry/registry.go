package registry

import (
	"fmt"
	"maps"
	"slices"

	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/provider"
)

// Info describes one registered provider for listings.
type Info struct {
	SiteID          string `json:"siteId"`
	Name            string `json:"name"`
	BaseURL         string `json:"baseUrl"`
	SupportedParams string `json:"supportedParams"`
}

// Registry maps site ids to providers. It is read-only after New returns and
// safe for concurrent use.
type Registry struct {
	providers map[string]*provider.Provider
	siteIDs   []string
}

func New(providers ...*provider.Provider) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]*provider.Provider, len(providers)),
	}

	for _, p := range providers {
		siteID := p.SiteID()
		if siteID == "" {
			return nil, fmt.Errorf("provider has an empty site id")
		}
		if _, ok := r.providers[siteID]; ok {
			return nil, fmt.Errorf("site '%s' is registered more than once", siteID)
		}
		r.providers[siteID] = p
	}

	r.siteIDs = slices.Sorted(maps.Keys(r.providers))

	return r, nil
}

func (r *Registry) Resolve(siteID string) (*provider.Provider, error) {
	p, ok := r.providers[siteID]
	if !ok {
		return nil, feed.UnsupportedSite(siteID)
	}
	return p, nil
}

func (r *Registry) IsSupported(siteID string) bool {
	_, ok := r.providers[siteID]
	return ok
}

// SiteIDs returns the registered site ids in lexicographic order.
func (r *Registry) SiteIDs() []string {
	return slices.Clone(r.siteIDs)
}

func (r *Registry) Count() int {
	return len(r.siteIDs)
}

// DescribeAll returns one Info per provider, ordered by site id.
func (r *Registry) DescribeAll() []Info {
	infos := make([]Info, 0, len(r.siteIDs))
	for _, siteID := range r.siteIDs {
		p := r.providers[siteID]
		desc := p.Descriptor()
		infos = append(infos, Info{
			SiteID:          siteID,
			Name:            desc.Name,
			BaseURL:         desc.BaseURL,
			SupportedParams: p.ParamsHelp(),
		})
	}
	return infos
}
