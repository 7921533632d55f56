package cache

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/lysyi3m/rss-nest/app/feed"
)

const (
	DefaultNamespace     = "rssNest:cache"
	DefaultLockNamespace = "rssNest:lock"
)

// Keys derives cache and lock keys. A key depends only on the site id and the
// canonical form of the parameters.
type Keys struct {
	Namespace     string
	LockNamespace string
}

func (k Keys) Key(siteID string, params feed.Params) string {
	return k.Namespace + ":" + siteID + ":" + digest(params)
}

func (k Keys) LockKey(siteID string, params feed.Params) string {
	return k.LockNamespace + ":" + siteID + ":" + digest(params)
}

// SitePrefix is the common prefix of every cache key of a site.
func (k Keys) SitePrefix(siteID string) string {
	return k.Namespace + ":" + siteID + ":"
}

func digest(params feed.Params) string {
	sum := md5.Sum([]byte(params.Canonical()))
	return hex.EncodeToString(sum[:])
}
