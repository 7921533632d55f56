package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-nest/app/feed"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client)
}

func newTestCoordinator(store Store, locker Locker, wait time.Duration) (*Coordinator, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	cfg := DefaultConfig()
	cfg.ContentionWait = wait
	return NewCoordinator(store, locker, cfg, metrics), metrics
}

func constant(value string, calls *atomic.Int32) GenerateFunc {
	return func(ctx context.Context) (Entry, error) {
		calls.Add(1)
		return Entry{Value: value, Cacheable: true}, nil
	}
}

// slow returns value after d unless ctx is done first.
func slow(value string, d time.Duration, calls *atomic.Int32) GenerateFunc {
	return func(ctx context.Context) (Entry, error) {
		calls.Add(1)
		select {
		case <-time.After(d):
			return Entry{Value: value, Cacheable: true}, nil
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		}
	}
}

// missingStore reports a miss for the first n lookups regardless of content.
type missingStore struct {
	Store
	misses atomic.Int32
}

func (s *missingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.misses.Add(-1) >= 0 {
		return "", false, nil
	}
	return s.Store.Get(ctx, key)
}

type failingLocker struct{}

func (failingLocker) SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func (failingLocker) Release(ctx context.Context, key, token string) error {
	return errors.New("dial tcp: connection refused")
}

func TestKeyDeterminism(t *testing.T) {
	keys := Keys{Namespace: DefaultNamespace, LockNamespace: DefaultLockNamespace}

	a := feed.Params{"category": "tech", "page": "2"}
	b := feed.Params{}
	b["page"] = "2"
	b["category"] = "tech"

	assert.Equal(t, keys.Key("ithome", a), keys.Key("ithome", b))
	assert.NotEqual(t, keys.Key("ithome", a), keys.Key("ithome", feed.Params{"category": "tech"}))
	assert.NotEqual(t, keys.Key("ithome", a), keys.Key("sspai", a))

	assert.Equal(t, "rssNest:cache:ithome:d41d8cd98f00b204e9800998ecf8427e", keys.Key("ithome", nil))
	assert.Equal(t, keys.Key("ithome", nil), keys.Key("ithome", feed.Params{}))
	assert.Equal(t, "rssNest:lock:ithome:d41d8cd98f00b204e9800998ecf8427e", keys.LockKey("ithome", nil))
	assert.True(t, strings.HasPrefix(keys.Key("ithome", a), keys.SitePrefix("ithome")))
}

func TestColdMissGeneratesAndCaches(t *testing.T) {
	mr, store := newTestStore(t)
	c, metrics := newTestCoordinator(store, store, 50*time.Millisecond)
	ctx := context.Background()
	params := feed.Params{"category": "it"}

	var calls atomic.Int32
	value, err := c.GetOrGenerate(ctx, "ithome", params, 10*time.Minute, constant("<rss/>", &calls))
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", value)
	assert.Equal(t, int32(1), calls.Load())

	cached, err := mr.Get(c.Key("ithome", params))
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", cached)
	assert.Equal(t, 10*time.Minute, mr.TTL(c.Key("ithome", params)))
	assert.False(t, mr.Exists(c.LockKey("ithome", params)), "lock must be released")

	value, err = c.GetOrGenerate(ctx, "ithome", params, 10*time.Minute, constant("other", &calls))
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", value)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Lookups.WithLabelValues("ithome", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Locks.WithLabelValues("ithome", "acquired")))
}

func TestLockHeldDuringGeneration(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, 50*time.Millisecond)

	_, err := c.GetOrGenerate(context.Background(), "v2ex", nil, 0, func(ctx context.Context) (Entry, error) {
		lockKey := c.LockKey("v2ex", nil)
		assert.True(t, mr.Exists(lockKey))
		assert.Equal(t, DefaultLockTTL, mr.TTL(lockKey))
		return Entry{Value: "feed", Cacheable: true}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultTTL, mr.TTL(c.Key("v2ex", nil)))
}

func TestDoubleCheckAfterLock(t *testing.T) {
	mr, store := newTestStore(t)
	wrapped := &missingStore{Store: store}
	wrapped.misses.Store(1)
	c, _ := newTestCoordinator(wrapped, store, 50*time.Millisecond)

	require.NoError(t, mr.Set(c.Key("weibo", nil), "filled by another instance"))

	var calls atomic.Int32
	value, err := c.GetOrGenerate(context.Background(), "weibo", nil, time.Minute, constant("fresh", &calls))
	require.NoError(t, err)
	assert.Equal(t, "filled by another instance", value)
	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, mr.Exists(c.LockKey("weibo", nil)))
}

func TestContendedThenHit(t *testing.T) {
	mr, store := newTestStore(t)
	wrapped := &missingStore{Store: store}
	wrapped.misses.Store(1)
	c, metrics := newTestCoordinator(wrapped, store, 20*time.Millisecond)

	require.NoError(t, mr.Set(c.LockKey("sspai", nil), "someone-else"))
	require.NoError(t, mr.Set(c.Key("sspai", nil), "generated elsewhere"))

	var calls atomic.Int32
	value, err := c.GetOrGenerate(context.Background(), "sspai", nil, time.Minute, constant("fresh", &calls))
	require.NoError(t, err)
	assert.Equal(t, "generated elsewhere", value)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Locks.WithLabelValues("sspai", "contended")))

	holder, err := mr.Get(c.LockKey("sspai", nil))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", holder, "foreign lock must not be released")
}

func TestContendedThenMissGeneratesWithoutCaching(t *testing.T) {
	mr, store := newTestStore(t)
	c, metrics := newTestCoordinator(store, store, 20*time.Millisecond)

	require.NoError(t, mr.Set(c.LockKey("github", nil), "someone-else"))

	var calls atomic.Int32
	started := time.Now()
	value, err := c.GetOrGenerate(context.Background(), "github", nil, time.Minute, constant("degraded", &calls))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)
	assert.Equal(t, "degraded", value)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, mr.Exists(c.Key("github", nil)), "degraded results are not cached")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Generations.WithLabelValues("github", "degraded")))
}

func TestLockOutageFailsOpen(t *testing.T) {
	mr, store := newTestStore(t)
	c, metrics := newTestCoordinator(store, failingLocker{}, 10*time.Millisecond)

	var calls atomic.Int32
	for range 3 {
		value, err := c.GetOrGenerate(context.Background(), "rrdynb", nil, time.Minute, constant("direct", &calls))
		require.NoError(t, err)
		assert.Equal(t, "direct", value)
	}

	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, mr.Exists(c.Key("rrdynb", nil)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Locks.WithLabelValues("rrdynb", "error")))
}

func TestCacheOutageFailsOpen(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, 10*time.Millisecond)
	mr.SetError("ERR simulated outage")

	var calls atomic.Int32
	value, err := c.GetOrGenerate(context.Background(), "ithome", nil, time.Minute, constant("direct", &calls))
	require.NoError(t, err)
	assert.Equal(t, "direct", value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerationErrorIsNotCached(t *testing.T) {
	mr, store := newTestStore(t)
	c, metrics := newTestCoordinator(store, store, 10*time.Millisecond)

	cause := feed.FetchFailure("https://example.com", errors.New("timeout"))
	_, err := c.GetOrGenerate(context.Background(), "v2ex", nil, time.Minute, func(ctx context.Context) (Entry, error) {
		return Entry{}, cause
	})

	assert.ErrorIs(t, err, feed.ErrFetchFailure)
	assert.Same(t, cause, err)
	assert.False(t, mr.Exists(c.Key("v2ex", nil)))
	assert.False(t, mr.Exists(c.LockKey("v2ex", nil)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GenerationErrors.WithLabelValues("v2ex")))
}

func TestNonCacheableEntry(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, 10*time.Millisecond)

	value, err := c.GetOrGenerate(context.Background(), "weibo", nil, time.Minute, func(ctx context.Context) (Entry, error) {
		return Entry{Value: "<rss>empty</rss>"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "<rss>empty</rss>", value)
	assert.False(t, mr.Exists(c.Key("weibo", nil)))
	assert.False(t, mr.Exists(c.LockKey("weibo", nil)))
}

func TestEntryExpires(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, 10*time.Millisecond)
	ctx := context.Background()

	var calls atomic.Int32
	_, err := c.GetOrGenerate(ctx, "ithome", nil, 30*time.Minute, constant("v1", &calls))
	require.NoError(t, err)

	mr.FastForward(29 * time.Minute)
	value, err := c.GetOrGenerate(ctx, "ithome", nil, 30*time.Minute, constant("v2", &calls))
	require.NoError(t, err)
	assert.Equal(t, "v1", value)

	mr.FastForward(2 * time.Minute)
	value, err = c.GetOrGenerate(ctx, "ithome", nil, 30*time.Minute, constant("v2", &calls))
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConcurrentCallersGenerateOnce(t *testing.T) {
	_, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, 300*time.Millisecond)

	var calls atomic.Int32
	slow := func(ctx context.Context) (Entry, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return Entry{Value: "shared", Cacheable: true}, nil
	}

	const callers = 20
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrGenerate(context.Background(), "github", feed.Params{"since": "daily"}, time.Minute, slow)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
}

func TestCancelledWaitFallsThrough(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, time.Hour)

	require.NoError(t, mr.Set(c.LockKey("v2ex", nil), "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	value, err := c.GetOrGenerate(ctx, "v2ex", nil, time.Minute, constant("late", &calls))
	require.NoError(t, err)
	assert.Equal(t, "late", value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelledHolderStillServesWaiters(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, 500*time.Millisecond)

	var calls atomic.Int32
	fn := slow("feed", 200*time.Millisecond, &calls)

	holderCtx, cancelHolder := context.WithCancel(context.Background())
	defer cancelHolder()

	var (
		wg                   sync.WaitGroup
		holderVal, waiterVal string
		holderErr, waiterErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		holderVal, holderErr = c.GetOrGenerate(holderCtx, "v2ex", nil, time.Minute, fn)
	}()

	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		waiterVal, waiterErr = c.GetOrGenerate(context.Background(), "v2ex", nil, time.Minute, fn)
	}()

	time.Sleep(40 * time.Millisecond)
	cancelHolder()
	wg.Wait()

	require.NoError(t, holderErr)
	assert.Equal(t, "feed", holderVal)
	require.NoError(t, waiterErr)
	assert.Equal(t, "feed", waiterVal)
	assert.Equal(t, int32(1), calls.Load())

	cached, err := mr.Get(c.Key("v2ex", nil))
	require.NoError(t, err)
	assert.Equal(t, "feed", cached)
}

func TestCancelledWaitStillGenerates(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, time.Hour)

	require.NoError(t, mr.Set(c.LockKey("v2ex", nil), "someone-else"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	value, err := c.GetOrGenerate(ctx, "v2ex", nil, time.Minute, slow("direct", 50*time.Millisecond, &calls))
	require.NoError(t, err)
	assert.Equal(t, "direct", value)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, mr.Exists(c.Key("v2ex", nil)))
}

func TestInvalidate(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, 10*time.Millisecond)
	ctx := context.Background()

	hot := feed.Params{"category": "hot"}
	latest := feed.Params{"category": "latest"}
	for _, key := range []string{
		c.Key("v2ex", hot),
		c.Key("v2ex", latest),
		c.Key("v2ex2", nil),
		c.Key("sspai", nil),
	} {
		require.NoError(t, mr.Set(key, "cached"))
	}

	require.NoError(t, c.Invalidate(ctx, "v2ex", hot))
	assert.False(t, mr.Exists(c.Key("v2ex", hot)))
	assert.True(t, mr.Exists(c.Key("v2ex", latest)))

	require.NoError(t, c.Invalidate(ctx, "v2ex", hot), "deleting a missing entry is not an error")

	deleted, err := c.InvalidateSite(ctx, "v2ex")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.False(t, mr.Exists(c.Key("v2ex", latest)))
	assert.True(t, mr.Exists(c.Key("v2ex2", nil)))
	assert.True(t, mr.Exists(c.Key("sspai", nil)))

	deleted, err = c.InvalidateSite(ctx, "v2ex")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	var calls atomic.Int32
	for _, params := range []feed.Params{hot, latest} {
		value, err := c.GetOrGenerate(ctx, "v2ex", params, time.Minute, constant("fresh", &calls))
		require.NoError(t, err)
		assert.Equal(t, "fresh", value)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestReleaseIsTokenGuarded(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.SetIfAbsent(ctx, "rssNest:lock:x", "token-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetIfAbsent(ctx, "rssNest:lock:x", "token-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, store.Release(ctx, "rssNest:lock:x", "token-b"), ErrLockNotHeld)
	assert.True(t, mr.Exists("rssNest:lock:x"))

	require.NoError(t, store.Release(ctx, "rssNest:lock:x", "token-a"))
	assert.False(t, mr.Exists("rssNest:lock:x"))
}

func TestStoreKeysScansAllBatches(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	for i := range 250 {
		require.NoError(t, mr.Set(fmt.Sprintf("ns:site:%d", i), "v"))
	}
	require.NoError(t, mr.Set("ns:other:key", "v"))

	keys, err := store.Keys(ctx, "ns:site:")
	require.NoError(t, err)
	assert.Len(t, keys, 250)

	deleted, err := store.DeleteAll(ctx, keys)
	require.NoError(t, err)
	assert.Equal(t, 250, deleted)
	assert.True(t, mr.Exists("ns:other:key"))
}

func TestRefreshOverwritesEntry(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, mr.Set(c.Key("weibo", nil), "stale"))

	var calls atomic.Int32
	refreshed, err := c.Refresh(ctx, "weibo", nil, 5*time.Minute, constant("fresh", &calls))
	require.NoError(t, err)
	assert.True(t, refreshed)

	value, err := mr.Get(c.Key("weibo", nil))
	require.NoError(t, err)
	assert.Equal(t, "fresh", value)
	assert.Equal(t, 5*time.Minute, mr.TTL(c.Key("weibo", nil)))
	assert.False(t, mr.Exists(c.LockKey("weibo", nil)))
}

func TestRefreshSkipsWhenLocked(t *testing.T) {
	mr, store := newTestStore(t)
	c, _ := newTestCoordinator(store, store, 10*time.Millisecond)

	require.NoError(t, mr.Set(c.LockKey("weibo", nil), "someone-else"))

	var calls atomic.Int32
	refreshed, err := c.Refresh(context.Background(), "weibo", nil, time.Minute, constant("fresh", &calls))
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, int32(0), calls.Load())
}
