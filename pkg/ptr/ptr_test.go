package ptr

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func Test_normalizePTR(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"example.com.", "example.com"},
		{"example.com", "example.com"},
		{"", ""},
		{".", ""},
	}

	for _, tt := range tests {
		if got := normalizePTR(tt.input); got != tt.want {
			t.Errorf("normalizePTR(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewResolver(t *testing.T) {
	r := NewResolver()

	if r == nil || r.cache == nil || r.lookupFunc == nil {
		t.Fatal("NewResolver() returned invalid resolver")
	}

	if r.retries != 3 || r.retryDelay != 100*time.Millisecond {
		t.Errorf("NewResolver() retries=%d delay=%v, want 3 and 100ms", r.retries, r.retryDelay)
	}
}

func TestResolver_Lookup(t *testing.T) {
	ip := netip.MustParseAddr("192.0.2.1")

	t.Run("successful lookup and cache", func(t *testing.T) {
		r := &Resolver{
			cache: make(map[netip.Addr]string),
			lookupFunc: func(ctx context.Context, addr string) ([]string, error) {
				return []string{"gw.example.com."}, nil
			},
			retries: 1,
		}

		if name, found := r.Lookup(context.Background(), ip); !found || name != "gw.example.com" {
			t.Errorf("Lookup() = (%q, %v), want (\"gw.example.com\", true)", name, found)
		}
		if name, found := r.Cached(ip); !found || name != "gw.example.com" {
			t.Errorf("Cached() = (%q, %v), want (\"gw.example.com\", true)", name, found)
		}
	})

	t.Run("already cached skips lookup", func(t *testing.T) {
		r := &Resolver{
			cache: map[netip.Addr]string{ip: "cached.com"},
			lookupFunc: func(ctx context.Context, addr string) ([]string, error) {
				t.Fatal("lookupFunc should not be called for cached IP")
				return nil, nil
			},
			retries: 1,
		}

		if name, _ := r.Lookup(context.Background(), ip); name != "cached.com" {
			t.Errorf("Lookup() = %q, want \"cached.com\"", name)
		}
	})

	t.Run("zone is ignored", func(t *testing.T) {
		r := &Resolver{
			cache:   map[netip.Addr]string{netip.MustParseAddr("fe80::1"): "router.local"},
			retries: 1,
		}

		if name, found := r.Lookup(context.Background(), netip.MustParseAddr("fe80::1%en0")); !found || name != "router.local" {
			t.Errorf("Lookup() = (%q, %v), want (\"router.local\", true)", name, found)
		}
	})

	t.Run("failed lookup retries then caches miss", func(t *testing.T) {
		var calls atomic.Int32
		r := &Resolver{
			cache: make(map[netip.Addr]string),
			lookupFunc: func(ctx context.Context, addr string) ([]string, error) {
				calls.Add(1)
				return nil, errors.New("lookup failed")
			},
			retries: 3,
		}

		if name, found := r.Lookup(context.Background(), ip); found {
			t.Errorf("Lookup() = (%q, %v), want empty and not found", name, found)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("lookupFunc called %d times, want 3", got)
		}
		r.Lookup(context.Background(), ip)
		if got := calls.Load(); got != 3 {
			t.Errorf("lookupFunc called %d times after cached miss, want 3", got)
		}
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		var calls atomic.Int32
		r := &Resolver{
			cache: make(map[netip.Addr]string),
			lookupFunc: func(ctx context.Context, addr string) ([]string, error) {
				calls.Add(1)
				return nil, ctx.Err()
			},
			retries:    5,
			retryDelay: time.Hour,
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, found := r.Lookup(ctx, ip); found {
			t.Error("Lookup() found a name with a cancelled context")
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("lookupFunc called %d times, want 1", got)
		}
	})
}

func TestResolver_Concurrency(t *testing.T) {
	r := &Resolver{
		cache: make(map[netip.Addr]string),
		lookupFunc: func(ctx context.Context, addr string) ([]string, error) {
			time.Sleep(time.Millisecond)
			return []string{addr + ".example.com."}, nil
		},
		retries: 1,
	}

	var wg sync.WaitGroup
	ips := []netip.Addr{
		netip.MustParseAddr("192.0.2.1"),
		netip.MustParseAddr("192.0.2.2"),
		netip.MustParseAddr("2001:db8::1"),
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, ip := range ips {
				r.Lookup(context.Background(), ip)
				r.Cached(ip)
			}
		}()
	}

	wg.Wait()

	for _, ip := range ips {
		want := ip.String() + ".example.com"
		if name, found := r.Cached(ip); !found || name != want {
			t.Errorf("IP %s: Cached() = (%q, %v), want (%q, true)", ip, name, found, want)
		}
	}
}
