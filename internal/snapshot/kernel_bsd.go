//go:build darwin || freebsd || netbsd || openbsd

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/net/route"
	"golang.org/x/sys/unix"
)

// fetchRIBMessages retrieves the routing information base (RIB) messages from the kernel.
// Variable for mocking in tests.
var fetchRIBMessages = func() ([]route.Message, error) {
	r, err := route.FetchRIB(syscall.AF_UNSPEC, route.RIBTypeRoute, 0)
	if err != nil {
		return nil, err
	}
	m, err := route.ParseRIB(route.RIBTypeRoute, r)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func renderKernel(ctx context.Context) (string, error) {
	msgs, err := fetchRIBMessages()
	if err != nil {
		return "", fmt.Errorf("fetching kernel routes: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return formatRIB(msgs), nil
}

// rtfLegend maps kernel route flags to netstat legend characters.
var rtfLegend = []struct {
	flag int
	char byte
}{
	{unix.RTF_UP, 'U'},
	{unix.RTF_GATEWAY, 'G'},
	{unix.RTF_HOST, 'H'},
	{unix.RTF_REJECT, 'R'},
	{unix.RTF_DYNAMIC, 'D'},
	{unix.RTF_MODIFIED, 'M'},
	{unix.RTF_STATIC, 'S'},
	{unix.RTF_BLACKHOLE, 'B'},
	{unix.RTF_PROTO1, '1'},
	{unix.RTF_PROTO2, '2'},
}

func rtfString(flags int) string {
	var b strings.Builder
	for _, l := range rtfLegend {
		if flags&l.flag != 0 {
			b.WriteByte(l.char)
		}
	}
	return b.String()
}

// formatRIB renders route messages as the "Internet:" and "Internet6:"
// sections printed by BSD netstat -rn.
func formatRIB(msgs []route.Message) string {
	var v4, v6 []string
	for _, msg := range msgs {
		rm, ok := msg.(*route.RouteMessage)
		if !ok || len(rm.Addrs) < 3 {
			continue
		}
		row, is6, ok := ribRow(rm)
		if !ok {
			continue
		}
		if is6 {
			v6 = append(v6, row)
		} else {
			v4 = append(v4, row)
		}
	}

	var b strings.Builder
	b.WriteString("Routing tables\n\nInternet:\n")
	fmt.Fprintf(&b, "%-18s %-18s %-10s %s\n", "Destination", "Gateway", "Flags", "Netif")
	for _, r := range v4 {
		b.WriteString(r)
	}
	b.WriteString("\nInternet6:\n")
	fmt.Fprintf(&b, "%-39s %-39s %-10s %s\n", "Destination", "Gateway", "Flags", "Netif")
	for _, r := range v6 {
		b.WriteString(r)
	}
	return b.String()
}

func ribRow(rm *route.RouteMessage) (string, bool, bool) {
	name, err := interfaceName(rm.Index)
	if err != nil {
		slog.Debug("Skipping kernel route on unknown interface", "index", rm.Index, "err", err)
		return "", false, false
	}

	var (
		dst  netip.Addr
		zone string
	)
	switch a := rm.Addrs[0].(type) {
	case *route.Inet4Addr:
		dst = netip.AddrFrom4(a.IP)
	case *route.Inet6Addr:
		dst = netip.AddrFrom16(a.IP)
		if a.ZoneID != 0 {
			zone, _ = interfaceName(a.ZoneID)
		}
	default:
		return "", false, false
	}

	bits := dst.BitLen()
	switch m := rm.Addrs[2].(type) {
	case *route.Inet4Addr:
		bits, _ = net.IPMask(m.IP[:]).Size()
	case *route.Inet6Addr:
		bits, _ = net.IPMask(m.IP[:]).Size()
	case nil:
		if dst.IsUnspecified() && rm.Flags&unix.RTF_HOST == 0 {
			bits = 0
		}
	}

	var dstText string
	switch {
	case bits == 0 && dst.IsUnspecified():
		dstText = "default"
	default:
		if zone != "" {
			dst = dst.WithZone(zone)
		}
		dstText = dst.String() + "/" + strconv.Itoa(bits)
	}

	gw := "-"
	switch g := rm.Addrs[1].(type) {
	case *route.Inet4Addr:
		gw = netip.AddrFrom4(g.IP).String()
	case *route.Inet6Addr:
		a := netip.AddrFrom16(g.IP)
		if g.ZoneID != 0 {
			if z, err := interfaceName(g.ZoneID); err == nil {
				a = a.WithZone(z)
			}
		}
		gw = a.String()
	case *route.LinkAddr:
		if len(g.Addr) == 6 {
			gw = net.HardwareAddr(g.Addr).String()
		} else {
			gw = "link#" + strconv.Itoa(g.Index)
		}
	}

	row := fmt.Sprintf("%-18s %-18s %-10s %s\n", dstText, gw, rtfString(rm.Flags), name)
	return row, dst.Is6(), true
}
