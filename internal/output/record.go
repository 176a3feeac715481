package output

import (
	"context"
	"net/netip"
	"strconv"

	"go4.org/netipx"

	"github.com/tkjaer/rtq/pkg/route"
)

// Resolver looks up PTR names for gateway addresses.
type Resolver interface {
	Lookup(ctx context.Context, ip netip.Addr) (string, bool)
}

// Record is the printable form of a route entry.
type Record struct {
	Family      string   `json:"family"`
	Destination string   `json:"destination"`
	Zone        string   `json:"zone,omitempty"`
	First       string   `json:"first"` // first and last address covered
	Last        string   `json:"last"`
	Gateway     string   `json:"gateway"`
	GatewayKind string   `json:"gateway_kind"`
	GatewayPTR  string   `json:"gateway_ptr,omitempty"`
	Interface   string   `json:"interface"`
	Flags       string   `json:"flags"`
	FlagNames   []string `json:"flag_names"`
	Expire      *int64   `json:"expire,omitempty"` // seconds
	Refs        *uint64  `json:"refs,omitempty"`
	Use         *uint64  `json:"use,omitempty"`
	Metric      *uint64  `json:"metric,omitempty"`
}

// LookupResult is the outcome of resolving one address.
type LookupResult struct {
	Query string  `json:"query"`
	Found bool    `json:"found"`
	Route *Record `json:"route,omitempty"`
}

func newRecord(ctx context.Context, e route.Entry, r Resolver) Record {
	p := e.Prefix()
	rec := Record{
		Family:      e.Family.String(),
		Destination: p.String(),
		Zone:        e.Zone(),
		First:       p.Addr().String(),
		Last:        netipx.PrefixLastIP(p).String(),
		Gateway:     e.Gateway.String(),
		GatewayKind: e.Gateway.Kind.String(),
		Interface:   e.Interface,
		Flags:       e.Flags.String(),
		FlagNames:   e.Flags.Names(),
		Refs:        e.Refs,
		Use:         e.Use,
		Metric:      e.Metric,
	}
	if e.Expire != nil {
		s := int64(e.Expire.Seconds())
		rec.Expire = &s
	}
	if ip, ok := e.Gateway.IP(); ok && r != nil {
		rec.GatewayPTR, _ = r.Lookup(ctx, ip)
	}
	return rec
}

func newLookupResult(ctx context.Context, query netip.Addr, e route.Entry, found bool, r Resolver) LookupResult {
	res := LookupResult{Query: query.String(), Found: found}
	if found {
		rec := newRecord(ctx, e, r)
		res.Route = &rec
	}
	return res
}

// counter formats an optional counter, empty when absent.
func counter(v *uint64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatUint(*v, 10)
}

func expire(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
