package sites

import "github.com/lysyi3m/rss-nest/app/provider"

// Builtin returns the sources shipped with the service.
func Builtin() []provider.Source {
	return []provider.Source{
		NewGithubTrending(),
		NewIthome(),
		NewRrdynb(),
		NewSspai(),
		NewV2ex(),
		NewWeibo(),
	}
}
