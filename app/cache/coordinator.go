package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lysyi3m/rss-nest/app/feed"
)

const (
	DefaultTTL            = 3 * time.Hour
	DefaultLockTTL        = 30 * time.Second
	DefaultContentionWait = 100 * time.Millisecond
)

// Entry is the result of a generation.
type Entry struct {
	Value string
	// Cacheable is false for results that must be served but not stored,
	// such as empty feeds.
	Cacheable bool
}

type GenerateFunc func(ctx context.Context) (Entry, error)

type Config struct {
	Namespace      string
	LockNamespace  string
	LockTTL        time.Duration
	ContentionWait time.Duration
	DefaultTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Namespace:      DefaultNamespace,
		LockNamespace:  DefaultLockNamespace,
		LockTTL:        DefaultLockTTL,
		ContentionWait: DefaultContentionWait,
		DefaultTTL:     DefaultTTL,
	}
}

// Coordinator serves cached feeds and makes sure at most one caller per key
// generates a missing entry at a time. When the lock store is unavailable it
// fails open and lets callers generate without caching.
type Coordinator struct {
	store   Store
	locker  Locker
	keys    Keys
	cfg     Config
	metrics *Metrics
}

func NewCoordinator(store Store, locker Locker, cfg Config, metrics *Metrics) *Coordinator {
	defaults := DefaultConfig()
	if cfg.Namespace == "" {
		cfg.Namespace = defaults.Namespace
	}
	if cfg.LockNamespace == "" {
		cfg.LockNamespace = defaults.LockNamespace
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	if cfg.ContentionWait <= 0 {
		cfg.ContentionWait = defaults.ContentionWait
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaults.DefaultTTL
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}

	return &Coordinator{
		store:   store,
		locker:  locker,
		keys:    Keys{Namespace: cfg.Namespace, LockNamespace: cfg.LockNamespace},
		cfg:     cfg,
		metrics: metrics,
	}
}

func (c *Coordinator) Key(siteID string, params feed.Params) string {
	return c.keys.Key(siteID, params)
}

func (c *Coordinator) LockKey(siteID string, params feed.Params) string {
	return c.keys.LockKey(siteID, params)
}

// GetOrGenerate returns the cached value for (siteID, params) or generates it
// with fn. A ttl of zero or less selects the default TTL. Errors from fn are
// returned unchanged and never cached.
func (c *Coordinator) GetOrGenerate(ctx context.Context, siteID string, params feed.Params, ttl time.Duration, fn GenerateFunc) (string, error) {
	key := c.Key(siteID, params)

	if value, ok := c.lookup(ctx, siteID, key); ok {
		return value, nil
	}

	lockKey := c.LockKey(siteID, params)
	token := uuid.NewString()

	acquired, err := c.locker.SetIfAbsent(ctx, lockKey, token, c.cfg.LockTTL)
	if err != nil {
		slog.Warn("Failed to acquire generation lock, treating as contended", "site", siteID, "key", lockKey, "error", err)
		c.metrics.Locks.WithLabelValues(siteID, "error").Inc()
	}

	if acquired {
		c.metrics.Locks.WithLabelValues(siteID, "acquired").Inc()
		return c.generateLocked(ctx, siteID, key, lockKey, token, ttl, fn)
	}

	if err == nil {
		c.metrics.Locks.WithLabelValues(siteID, "contended").Inc()
	}

	c.wait(ctx)

	// A caller whose wait was cut short still gets a feed.
	ctx, cancel := c.detach(ctx)
	defer cancel()

	if value, ok := c.lookup(ctx, siteID, key); ok {
		return value, nil
	}

	slog.Warn("Generating feed without lock", "site", siteID, "key", key)
	c.metrics.Generations.WithLabelValues(siteID, "degraded").Inc()

	entry, err := fn(ctx)
	if err != nil {
		c.metrics.GenerationErrors.WithLabelValues(siteID).Inc()
		return "", err
	}
	return entry.Value, nil
}

func (c *Coordinator) generateLocked(ctx context.Context, siteID, key, lockKey, token string, ttl time.Duration, fn GenerateFunc) (string, error) {
	// Waiters depend on this generation, so the holder's cancellation must not
	// abort it.
	ctx, cancel := c.detach(ctx)
	defer cancel()
	defer c.release(ctx, siteID, lockKey, token)

	// Another holder may have filled the entry between the miss and the lock.
	if value, ok := c.lookup(ctx, siteID, key); ok {
		return value, nil
	}

	c.metrics.Generations.WithLabelValues(siteID, "locked").Inc()

	entry, err := fn(ctx)
	if err != nil {
		c.metrics.GenerationErrors.WithLabelValues(siteID).Inc()
		return "", err
	}

	if !entry.Cacheable {
		slog.Debug("Generated feed not cached", "site", siteID, "key", key)
		return entry.Value, nil
	}

	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	if err := c.store.Set(ctx, key, entry.Value, ttl); err != nil {
		slog.Warn("Failed to store feed in cache", "site", siteID, "key", key, "error", err)
	} else {
		slog.Debug("Feed cached", "site", siteID, "key", key, "ttl", ttl)
	}

	return entry.Value, nil
}

// Refresh regenerates the entry for (siteID, params) and overwrites the cached
// value. It does nothing and returns false when another caller holds the
// generation lock.
func (c *Coordinator) Refresh(ctx context.Context, siteID string, params feed.Params, ttl time.Duration, fn GenerateFunc) (bool, error) {
	key := c.Key(siteID, params)
	lockKey := c.LockKey(siteID, params)
	token := uuid.NewString()

	acquired, err := c.locker.SetIfAbsent(ctx, lockKey, token, c.cfg.LockTTL)
	if err != nil {
		c.metrics.Locks.WithLabelValues(siteID, "error").Inc()
		return false, err
	}
	if !acquired {
		c.metrics.Locks.WithLabelValues(siteID, "contended").Inc()
		return false, nil
	}
	c.metrics.Locks.WithLabelValues(siteID, "acquired").Inc()
	defer c.release(ctx, siteID, lockKey, token)

	c.metrics.Generations.WithLabelValues(siteID, "refresh").Inc()

	entry, err := fn(ctx)
	if err != nil {
		c.metrics.GenerationErrors.WithLabelValues(siteID).Inc()
		return false, err
	}
	if !entry.Cacheable {
		return false, nil
	}

	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	if err := c.store.Set(ctx, key, entry.Value, ttl); err != nil {
		return false, err
	}

	return true, nil
}

func (c *Coordinator) lookup(ctx context.Context, siteID, key string) (string, bool) {
	value, found, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		slog.Warn("Cache lookup failed, treating as miss", "site", siteID, "key", key, "error", err)
		c.metrics.Lookups.WithLabelValues(siteID, "error").Inc()
		return "", false
	case !found:
		c.metrics.Lookups.WithLabelValues(siteID, "miss").Inc()
		return "", false
	default:
		c.metrics.Lookups.WithLabelValues(siteID, "hit").Inc()
		return value, true
	}
}

func (c *Coordinator) release(ctx context.Context, siteID, lockKey, token string) {
	// The caller may have gone away; the lock must be released regardless.
	err := c.locker.Release(context.WithoutCancel(ctx), lockKey, token)
	switch {
	case errors.Is(err, ErrLockNotHeld):
		slog.Warn("Generation lock expired before release", "site", siteID, "key", lockKey)
	case err != nil:
		slog.Warn("Failed to release generation lock", "site", siteID, "key", lockKey, "error", err)
	}
}

// detach drops the caller's cancellation and bounds the generation by the
// lock TTL instead.
func (c *Coordinator) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.cfg.LockTTL)
}

func (c *Coordinator) wait(ctx context.Context) {
	timer := time.NewTimer(c.cfg.ContentionWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Invalidate removes the entry of one (siteID, params) pair.
func (c *Coordinator) Invalidate(ctx context.Context, siteID string, params feed.Params) error {
	key := c.Key(siteID, params)
	if err := c.store.Delete(ctx, key); err != nil {
		return err
	}

	c.metrics.Invalidations.WithLabelValues(siteID).Inc()
	slog.Info("Cache entry invalidated", "site", siteID, "key", key)

	return nil
}

// InvalidateSite removes every entry of siteID and returns how many were
// deleted.
func (c *Coordinator) InvalidateSite(ctx context.Context, siteID string) (int, error) {
	prefix := c.keys.SitePrefix(siteID)

	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := c.store.DeleteAll(ctx, keys)
	c.metrics.Invalidations.WithLabelValues(siteID).Add(float64(deleted))
	if err != nil {
		return deleted, err
	}

	slog.Info("Site cache invalidated", "site", siteID, "keys", deleted)

	return deleted, nil
}
