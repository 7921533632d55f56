package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-nest/app/cache"
	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/provider"
	"github.com/lysyi3m/rss-nest/app/registry"
)

// Pinger reports the availability of the cache backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Sites     int       `json:"sites"`
	Cache     string    `json:"cache"`
	CheckedAt time.Time `json:"checkedAt"`
}

// FeedService resolves providers and serves their feeds through the cache
// coordinator.
type FeedService struct {
	registry    *registry.Registry
	coordinator *cache.Coordinator
	generator   *feed.Generator
	pinger      Pinger
	version     string
}

func New(reg *registry.Registry, coordinator *cache.Coordinator, generator *feed.Generator, pinger Pinger, version string) *FeedService {
	return &FeedService{
		registry:    reg,
		coordinator: coordinator,
		generator:   generator,
		pinger:      pinger,
		version:     version,
	}
}

// Generate returns the serialized feed of siteID for params.
func (s *FeedService) Generate(ctx context.Context, siteID string, params feed.Params) (string, error) {
	p, err := s.registry.Resolve(siteID)
	if err != nil {
		return "", err
	}

	policy := p.Descriptor().Cache
	if !policy.Enabled {
		entry, err := s.render(ctx, p, params, policy)
		return entry.Value, err
	}

	return s.coordinator.GetOrGenerate(ctx, siteID, params, policy.TTLDuration(), func(ctx context.Context) (cache.Entry, error) {
		return s.render(ctx, p, params, policy)
	})
}

// Refresh regenerates the cached feed of siteID ahead of expiry. Sites with
// caching disabled are left alone.
func (s *FeedService) Refresh(ctx context.Context, siteID string, params feed.Params) error {
	p, err := s.registry.Resolve(siteID)
	if err != nil {
		return err
	}

	policy := p.Descriptor().Cache
	if !policy.Enabled {
		slog.Debug("Cache disabled, skipping refresh", "site", siteID)
		return nil
	}

	refreshed, err := s.coordinator.Refresh(ctx, siteID, params, policy.TTLDuration(), func(ctx context.Context) (cache.Entry, error) {
		return s.render(ctx, p, params, policy)
	})
	if err != nil {
		return err
	}

	slog.Debug("Feed refreshed", "site", siteID, "params", params.Canonical(), "stored", refreshed)
	return nil
}

func (s *FeedService) render(ctx context.Context, p *provider.Provider, params feed.Params, policy provider.CacheConfig) (cache.Entry, error) {
	result, err := p.Generate(ctx, params)
	if err != nil {
		return cache.Entry{}, err
	}

	text, err := s.generator.Run(result)
	if err != nil {
		return cache.Entry{}, feed.GenerationFailure(fmt.Sprintf("failed to serialize %s feed", p.SiteID()), err)
	}

	cacheable := len(result.Articles) > 0 || policy.CacheEmpty
	if !cacheable {
		slog.Warn("Feed has no articles", "site", p.SiteID(), "params", params.Canonical())
	}

	return cache.Entry{Value: text, Cacheable: cacheable}, nil
}

// ClearCache drops the cached feed for params, or every cached feed of the
// site when params is empty. It returns the number of removed entries when
// known.
func (s *FeedService) ClearCache(ctx context.Context, siteID string, params feed.Params) (int, error) {
	if !s.registry.IsSupported(siteID) {
		return 0, feed.UnsupportedSite(siteID)
	}

	if len(params) == 0 {
		deleted, err := s.coordinator.InvalidateSite(ctx, siteID)
		if err != nil {
			return deleted, fmt.Errorf("failed to clear %s cache: %w", siteID, err)
		}
		return deleted, nil
	}

	if err := s.coordinator.Invalidate(ctx, siteID, params); err != nil {
		return 0, fmt.Errorf("failed to clear %s cache: %w", siteID, err)
	}
	return 1, nil
}

func (s *FeedService) Sites() []string {
	return s.registry.SiteIDs()
}

func (s *FeedService) Providers() []registry.Info {
	return s.registry.DescribeAll()
}

func (s *FeedService) Health(ctx context.Context) Health {
	health := Health{
		Status:    "UP",
		Version:   s.version,
		Sites:     s.registry.Count(),
		Cache:     "UP",
		CheckedAt: time.Now(),
	}

	if s.pinger == nil {
		health.Cache = "UNKNOWN"
		return health
	}

	if err := s.pinger.Ping(ctx); err != nil {
		slog.Warn("Cache health check failed", "error", err)
		health.Status = "DEGRADED"
		health.Cache = "DOWN"
	}

	return health
}
