package cfg

import "time"

type Cfg struct {
	// HTTP server
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Redis cache and lock store
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CacheNamespace string
	LockNamespace  string

	// Sites and fetching
	SitesDir     string
	UserAgent    string
	FetchTimeout time.Duration

	// Background warm-up
	WorkerCount  int
	WarmSchedule string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
