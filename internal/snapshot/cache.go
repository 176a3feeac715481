package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/tkjaer/rtq/pkg/netstat"
	"github.com/tkjaer/rtq/pkg/route"
)

// Loaded is a table built from one snapshot.
type Loaded struct {
	Table  *route.Table
	Result *netstat.Result
	Taken  time.Time
}

// Cache keeps the table of a Source for a fixed time. When it expires the
// next call loads a new table and replaces the old one as a whole; tables
// already handed out stay valid.
type Cache struct {
	src   Source
	opts  []route.Option
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *Loaded]
	load  func(ctx context.Context, src Source, opts ...route.Option) (*route.Table, *netstat.Result, error)
	now   func() time.Time
}

// NewCache returns a Cache loading tables from src with opts, keeping each
// one for ttl.
func NewCache(src Source, ttl time.Duration, opts ...route.Option) *Cache {
	c := &Cache{
		src:  src,
		opts: opts,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, *Loaded](ttl),
			ttlcache.WithDisableTouchOnHit[string, *Loaded](),
		),
		load: Load,
		now:  time.Now,
	}
	c.cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Loaded]) {
		if reason == ttlcache.EvictionReasonExpired {
			slog.Debug("Route table snapshot expired", "source", item.Key(), "taken", item.Value().Taken)
		}
	})
	return c
}

// Get returns the cached table, loading a new one if there is none or the
// cached one has expired.
func (c *Cache) Get(ctx context.Context) (*Loaded, error) {
	key := c.src.Name()
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	table, res, err := c.load(ctx, c.src, c.opts...)
	if err != nil {
		return nil, err
	}
	l := &Loaded{Table: table, Result: res, Taken: c.now()}
	c.cache.DeleteExpired()
	c.cache.Set(key, l, ttlcache.DefaultTTL)
	slog.Debug("Route table snapshot loaded", "source", key, "discarded", res.Discarded())
	return l, nil
}

// Table returns the current table and its parse result.
func (c *Cache) Table(ctx context.Context) (*route.Table, *netstat.Result, error) {
	l, err := c.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	return l.Table, l.Result, nil
}

// Invalidate drops the cached table so the next Get loads a new one.
func (c *Cache) Invalidate() {
	c.cache.Delete(c.src.Name())
}
