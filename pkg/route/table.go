package route

import (
	"iter"
	"log/slog"
	"net/netip"
	"slices"
	"sort"

	"github.com/gaissmai/bart"

	"github.com/tkjaer/rtq/pkg/addr"
)

// subtable holds the entries of one address family in snapshot order and a
// longest-prefix index from destination prefix to entry positions.
type subtable struct {
	entries []Entry
	index   *bart.Table[[]int]
}

func newSubtable(entries []Entry) subtable {
	positions := make(map[netip.Prefix][]int)
	var order []netip.Prefix
	for i, e := range entries {
		p := e.Destination.Prefix
		if _, ok := positions[p]; !ok {
			order = append(order, p)
		}
		positions[p] = append(positions[p], i)
	}
	idx := new(bart.Table[[]int])
	for _, p := range order {
		idx.Insert(p, positions[p])
	}
	return subtable{entries: entries, index: idx}
}

// Table is an immutable route table snapshot. It is safe for concurrent use.
type Table struct {
	v4, v6 subtable
	policy Policy
	logger *slog.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithPolicy sets the tie-break policy used by Lookup.
func WithPolicy(p Policy) Option {
	return func(t *Table) {
		if len(p) > 0 {
			t.policy = slices.Clone(p)
		}
	}
}

// WithLogger sets the logger used while building the table.
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTable builds a table from entries in snapshot order. Entries failing
// Validate are left out and logged.
func NewTable(entries []Entry, opts ...Option) *Table {
	t := &Table{
		policy: DefaultPolicy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	var v4, v6 []Entry
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			t.logger.Warn("Dropping invalid route entry", "entry", e.String(), "err", err)
			continue
		}
		switch e.Family {
		case addr.V4:
			v4 = append(v4, e)
		case addr.V6:
			v6 = append(v6, e)
		}
	}
	t.v4 = newSubtable(v4)
	t.v6 = newSubtable(v6)
	t.logger.Debug("Route table built", "ipv4", len(v4), "ipv6", len(v6), "policy", t.policy.String())
	return t
}

func (t *Table) sub(f addr.Family) *subtable {
	switch f {
	case addr.V4:
		return &t.v4
	case addr.V6:
		return &t.v6
	}
	return nil
}

// Policy returns the tie-break policy of the table.
func (t *Table) Policy() Policy {
	return slices.Clone(t.policy)
}

// Lookup returns the entry carrying traffic for a: the most specific entry
// containing a, ties broken by the table policy. A default route is only
// used when it is Up. When a has a zone, entries scoped to another zone are
// not considered. The boolean is false when no entry matches.
func (t *Table) Lookup(a netip.Addr) (Entry, bool) {
	st := t.sub(addr.FamilyOf(a))
	if st == nil || len(st.entries) == 0 {
		return Entry{}, false
	}
	zone := a.Zone()
	a = a.WithZone("")

	pfx := netip.PrefixFrom(a, a.BitLen())
	for {
		lpm, positions, ok := st.index.LookupPrefixLPM(pfx)
		if !ok {
			return Entry{}, false
		}
		if i, ok := t.best(st.entries, positions, zone); ok {
			return st.entries[i], true
		}
		if lpm.Bits() == 0 {
			return Entry{}, false
		}
		pfx = netip.PrefixFrom(a, lpm.Bits()-1).Masked()
	}
}

// best picks the preferred candidate among entries sharing one destination
// prefix.
func (t *Table) best(entries []Entry, positions []int, zone string) (int, bool) {
	found := -1
	for _, i := range positions {
		e := entries[i]
		if zone != "" && e.Zone() != "" && e.Zone() != zone {
			continue
		}
		if e.IsDefault() && !e.Flags.Has(FlagUp) {
			continue
		}
		if found < 0 || t.policy.compare(entries, i, found) < 0 {
			found = i
		}
	}
	return found, found >= 0
}

func (t *Table) filter(keep func(Entry) bool) []Entry {
	var out []Entry
	for e := range t.All() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// ByInterface returns the entries using interface name, in snapshot order.
func (t *Table) ByInterface(name string) []Entry {
	return t.filter(func(e Entry) bool { return e.Interface == name })
}

// WithFlag returns the entries that have every flag in f set.
func (t *Table) WithFlag(f Flag) []Entry {
	return t.filter(func(e Entry) bool { return e.Flags.Has(f) })
}

// ByDestination returns the entries whose destination is exactly p.
func (t *Table) ByDestination(p netip.Prefix) []Entry {
	st := t.sub(addr.FamilyOf(p.Addr()))
	if st == nil || !p.IsValid() {
		return nil
	}
	positions, ok := st.index.Get(p.Masked())
	if !ok {
		return nil
	}
	out := make([]Entry, len(positions))
	for i, pos := range positions {
		out[i] = st.entries[pos]
	}
	return out
}

// Entries returns a copy of the entries of family f in snapshot order.
func (t *Table) Entries(f addr.Family) []Entry {
	st := t.sub(f)
	if st == nil {
		return nil
	}
	return slices.Clone(st.entries)
}

// All iterates over the IPv4 entries and then the IPv6 entries.
func (t *Table) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, st := range []*subtable{&t.v4, &t.v6} {
			for _, e := range st.entries {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// Len returns the number of entries of family f.
func (t *Table) Len(f addr.Family) int {
	if st := t.sub(f); st != nil {
		return len(st.entries)
	}
	return 0
}

// Interfaces returns the sorted set of interface names used by the table.
func (t *Table) Interfaces() []string {
	seen := make(map[string]struct{})
	for e := range t.All() {
		seen[e.Interface] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultGateways returns the next hop addresses of the default routes on
// interface netif, IPv4 first, in snapshot order.
func (t *Table) DefaultGateways(netif string) []netip.Addr {
	var gws []netip.Addr
	for e := range t.All() {
		if e.Interface != netif || !e.IsDefault() {
			continue
		}
		if ip, ok := e.Gateway.IP(); ok {
			gws = append(gws, ip)
		}
	}
	return gws
}
