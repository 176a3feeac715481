package output

import (
	"context"
	"net/netip"
	"testing"

	"github.com/tkjaer/rtq/pkg/netstat"
	"github.com/tkjaer/rtq/pkg/route"
)

const darwinTable = `Routing tables

Internet:
Destination        Gateway            Flags               Netif Expire
default            192.168.1.1        UGScg                 en0
192.168.1          link#4             UCS                   en0      !
192.168.1.7        0:11:22:33:44:55   UHLWIi                en0   1183

Internet6:
Destination                             Gateway                                 Flags               Netif Expire
default                                 fe80::1%en0                             UGcg                  en0
fe80::%en0/64                           link#4                                  UCI                   en0
`

type fakeResolver map[netip.Addr]string

func (f fakeResolver) Lookup(_ context.Context, ip netip.Addr) (string, bool) {
	name, ok := f[ip.WithZone("")]
	return name, ok
}

var resolver = fakeResolver{
	netip.MustParseAddr("192.168.1.1"): "router.example.com",
}

func loadTable(t *testing.T) ([]route.Entry, *route.Table) {
	t.Helper()
	table, res, err := netstat.NewTable(darwinTable)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	if res.Discarded() != 0 {
		t.Fatalf("NewTable() skipped %v", res.Skipped)
	}
	return res.Entries(), table
}

func lookup(t *testing.T, table *route.Table, q string) (netip.Addr, route.Entry, bool) {
	t.Helper()
	a := netip.MustParseAddr(q)
	e, ok := table.Lookup(a)
	return a, e, ok
}
