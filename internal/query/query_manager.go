// Package query loads a route table snapshot and answers the lookups and
// listings requested on the command line.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/tkjaer/rtq/internal/config"
	"github.com/tkjaer/rtq/internal/metrics"
	"github.com/tkjaer/rtq/internal/output"
	"github.com/tkjaer/rtq/internal/snapshot"
	"github.com/tkjaer/rtq/pkg/addr"
	"github.com/tkjaer/rtq/pkg/ptr"
	"github.com/tkjaer/rtq/pkg/route"
)

// QueryManager runs the configured queries against a cached route table,
// once or at a fixed interval until stopped.
type QueryManager struct {
	stop     chan struct{}
	stopOnce sync.Once

	src     snapshot.Source
	cache   *snapshot.Cache
	out     *output.OutputManager
	metrics *metrics.Metrics
	loaded  *snapshot.Loaded

	addresses   []netip.Addr
	family      addr.Family // 0 means both
	netif       string
	flag        route.Flag
	list        bool
	timeout     time.Duration
	watch       time.Duration
	metricsFile string
}

// newSource picks the snapshot source selected by a.
func newSource(a config.Args) snapshot.Source {
	switch a.SourceName() {
	case config.SourceFile:
		return snapshot.File{Path: a.File}
	case config.SourceKernel:
		return snapshot.Kernel{}
	}
	return snapshot.Netstat{Path: a.NetstatPath, Invocations: snapshot.DefaultInvocations(runtime.GOOS)}
}

// newOutput builds the output selected by a, writing to stdout.
func newOutput(a config.Args) (output.Output, error) {
	var r output.Resolver
	if a.Resolve {
		r = ptr.NewResolver()
	}
	switch {
	case a.Json:
		return output.NewJSONOutput("", r)
	case a.Format != "":
		return output.NewTemplateOutput(os.Stdout, a.Format, r)
	}
	return output.NewTextOutput(os.Stdout, r), nil
}

// NewQueryManager validates the queries in a and sets up the table source
// and outputs.
func NewQueryManager(a config.Args) (*QueryManager, error) {
	qm := &QueryManager{
		stop:        make(chan struct{}),
		src:         newSource(a),
		out:         &output.OutputManager{},
		netif:       a.Interface,
		list:        a.List,
		timeout:     a.Timeout,
		watch:       a.Watch,
		metricsFile: a.MetricsFile,
	}

	switch {
	case a.ForceIPv4:
		qm.family = addr.V4
	case a.ForceIPv6:
		qm.family = addr.V6
	}

	for _, s := range a.Addresses {
		ip, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", s, err)
		}
		if qm.family != 0 && addr.FamilyOf(ip) != qm.family {
			return nil, fmt.Errorf("address %s is not %s", ip, qm.family)
		}
		qm.addresses = append(qm.addresses, ip)
	}

	if a.Flag != "" {
		f, ok := route.FlagByName(a.Flag)
		if !ok {
			return nil, fmt.Errorf("unknown route flag %q", a.Flag)
		}
		qm.flag = f
	}

	out, err := newOutput(a)
	if err != nil {
		return nil, err
	}
	qm.out.Register(out)

	if a.MetricsFile != "" {
		qm.metrics = metrics.New()
	}

	// Without --watch the TTL is 0 and the one table never expires. With it,
	// refresh invalidates the table on every tick.
	qm.cache = snapshot.NewCache(qm.src, a.Watch, route.WithPolicy(a.Policy()))

	slog.Debug("Query manager ready",
		"source", qm.src.Name(),
		"addresses", len(qm.addresses),
		"policy", a.Policy().String(),
		"watch", a.Watch,
	)
	return qm, nil
}

// Run answers the queries once, or every watch interval until Stop is
// called. With --watch a failed round is logged and retried next interval.
func (qm *QueryManager) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-qm.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := qm.runOnce(ctx)
	if qm.watch == 0 {
		if cerr := qm.out.Close(); err == nil {
			err = cerr
		}
		return err
	}
	if err != nil {
		slog.Error("Route table query failed", "error", err)
	}

	ticker := time.NewTicker(qm.watch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return qm.out.Close()
		case <-ticker.C:
			if err := qm.refresh(ctx); err != nil {
				slog.Error("Route table query failed", "error", err)
			}
		}
	}
}

// Stop ends a running watch loop.
func (qm *QueryManager) Stop() {
	qm.stopOnce.Do(func() { close(qm.stop) })
}

// refresh drops the cached table and answers the queries against a fresh
// one. Ticks and cache expiry drift apart, so each round reloads explicitly.
func (qm *QueryManager) refresh(ctx context.Context) error {
	qm.cache.Invalidate()
	return qm.runOnce(ctx)
}

func (qm *QueryManager) runOnce(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, qm.timeout)
	defer cancel()

	start := time.Now()
	l, err := qm.cache.Get(loadCtx)
	if err != nil {
		return fmt.Errorf("failed to load route table from %s: %w", qm.src.Name(), err)
	}
	if l != qm.loaded {
		qm.loaded = l
		for _, s := range l.Result.Skipped {
			slog.Info("Skipped route table line", "line", s.Line, "reason", s.Reason.String(), "text", s.Text)
		}
		if qm.metrics != nil {
			qm.metrics.ObserveLoad(qm.src.Name(), l.Table, l.Result, time.Since(start), l.Taken)
		}
	}

	if qm.listing() {
		if err := qm.out.Entries(ctx, qm.selectEntries(l.Table)); err != nil {
			return err
		}
	}
	for _, a := range qm.addresses {
		e, ok := l.Table.Lookup(a)
		if qm.metrics != nil {
			qm.metrics.ObserveLookup(a, e, ok)
		}
		if err := qm.out.Lookup(ctx, a, e, ok); err != nil {
			return err
		}
	}

	if qm.metrics != nil {
		if err := qm.metrics.WriteFile(qm.metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func (qm *QueryManager) listing() bool {
	return qm.list || qm.netif != "" || qm.flag != 0
}

// selectEntries applies the interface, flag and family filters.
func (qm *QueryManager) selectEntries(t *route.Table) []route.Entry {
	var entries []route.Entry
	switch {
	case qm.netif != "":
		entries = t.ByInterface(qm.netif)
	case qm.flag != 0:
		entries = t.WithFlag(qm.flag)
	default:
		for e := range t.All() {
			entries = append(entries, e)
		}
	}

	out := entries[:0]
	for _, e := range entries {
		if qm.flag != 0 && !e.Flags.Has(qm.flag) {
			continue
		}
		if qm.family != 0 && e.Family != qm.family {
			continue
		}
		out = append(out, e)
	}
	return out
}
