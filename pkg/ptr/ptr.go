// Package ptr resolves and caches reverse DNS names for gateway addresses.
package ptr

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// Resolver handles PTR lookups with simple caching
type Resolver struct {
	mu         sync.Mutex
	cache      map[netip.Addr]string
	lookupFunc func(ctx context.Context, addr string) ([]string, error)
	retries    int
	retryDelay time.Duration
}

// NewResolver creates a Resolver backed by net.DefaultResolver.
func NewResolver() *Resolver {
	return &Resolver{
		cache:      make(map[netip.Addr]string),
		lookupFunc: net.DefaultResolver.LookupAddr,
		retries:    3,
		retryDelay: 100 * time.Millisecond,
	}
}

// normalizePTR removes the trailing dot of a fully qualified name.
func normalizePTR(name string) string {
	return strings.TrimSuffix(name, ".")
}

// Lookup returns the PTR name of ip, resolving it on first use. Failed
// lookups are cached as empty and report false.
func (r *Resolver) Lookup(ctx context.Context, ip netip.Addr) (string, bool) {
	ip = ip.WithZone("")
	r.mu.Lock()
	name, exists := r.cache[ip]
	r.mu.Unlock()
	if exists {
		return name, name != ""
	}

	for attempt := range r.retries {
		names, err := r.lookupFunc(ctx, ip.String())
		if err == nil && len(names) > 0 {
			name = normalizePTR(names[0])
			break
		}
		if ctx.Err() != nil || attempt == r.retries-1 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(r.retryDelay):
		}
	}

	r.mu.Lock()
	r.cache[ip] = name
	r.mu.Unlock()
	return name, name != ""
}

// Cached returns a previously resolved PTR name without doing a lookup.
func (r *Resolver) Cached(ip netip.Addr) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := r.cache[ip.WithZone("")]
	return name, name != ""
}
