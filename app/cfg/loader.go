package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/robfig/cron/v3"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://rss.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for cache management endpoints (optional)"`

	// Redis
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
	RedisPassword  string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB        int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	CacheNamespace string `long:"cache-namespace" env:"CACHE_NAMESPACE" default:"rssNest:cache" description:"Key prefix for cached feeds"`
	LockNamespace  string `long:"lock-namespace" env:"LOCK_NAMESPACE" default:"rssNest:lock" description:"Key prefix for generation locks"`

	// Sites and fetching
	SitesDir     string `long:"sites-dir" env:"SITES_DIR" default:"./sites" description:"Directory containing YAML site declarations"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"RSS Nest/1.0" description:"User agent string for HTTP requests"`
	FetchTimeout int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Source fetch timeout in seconds"`

	// Background warm-up
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for feed warm-up"`
	WarmSchedule string `long:"warm-schedule" env:"WARM_SCHEDULE" description:"Cron schedule to keep built-in sites warm (disabled when empty)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Shanghai)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load parses flags and environment. It returns (nil, nil) when help was requested.
func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg, err := raw.toCfg()
	if err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func (raw rawCfg) toCfg() (*Cfg, error) {
	if raw.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive, got %d", raw.FetchTimeout)
	}
	if raw.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", raw.WorkerCount)
	}
	if raw.RedisDB < 0 {
		return nil, fmt.Errorf("redis db must be non-negative, got %d", raw.RedisDB)
	}
	if raw.WarmSchedule != "" {
		if _, err := cron.ParseStandard(raw.WarmSchedule); err != nil {
			return nil, fmt.Errorf("invalid warm schedule '%s': %w", raw.WarmSchedule, err)
		}
	}

	return &Cfg{
		Port:           raw.Port,
		BaseUrl:        raw.BaseUrl,
		APIAccessKey:   raw.APIAccessKey,
		RedisAddr:      raw.RedisAddr,
		RedisPassword:  raw.RedisPassword,
		RedisDB:        raw.RedisDB,
		CacheNamespace: raw.CacheNamespace,
		LockNamespace:  raw.LockNamespace,
		SitesDir:       raw.SitesDir,
		UserAgent:      raw.UserAgent,
		FetchTimeout:   time.Duration(raw.FetchTimeout) * time.Second,
		WorkerCount:    raw.WorkerCount,
		WarmSchedule:   raw.WarmSchedule,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
