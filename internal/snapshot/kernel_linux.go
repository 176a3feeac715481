//go:build linux

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/jsimonetti/rtnetlink"
	"golang.org/x/sys/unix"
)

// listRoutes dumps the kernel route tables over netlink.
// Variable for mocking in tests.
var listRoutes = func() ([]rtnetlink.RouteMessage, error) {
	c, err := rtnetlink.Dial(nil)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Route.List()
}

func renderKernel(ctx context.Context) (string, error) {
	msgs, err := listRoutes()
	if err != nil {
		return "", fmt.Errorf("listing kernel routes: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return formatLinuxRoutes(msgs), nil
}

// linuxRow is one route rendered the way route(8) from net-tools prints it.
type linuxRow struct {
	dst     netip.Prefix
	gateway netip.Addr
	flags   string
	metric  uint32
	iface   string
}

// formatLinuxRoutes renders the main table routes in msgs as
// "Kernel IP routing table" and "Kernel IPv6 routing table" sections.
func formatLinuxRoutes(msgs []rtnetlink.RouteMessage) string {
	var v4, v6 []linuxRow
	for _, m := range msgs {
		for _, r := range linuxRows(m) {
			if r.dst.Addr().Is4() {
				v4 = append(v4, r)
			} else {
				v6 = append(v6, r)
			}
		}
	}

	var b strings.Builder
	b.WriteString("Kernel IP routing table\n")
	fmt.Fprintf(&b, "%-15s %-15s %-15s %-5s %-6s %-3s %6s %s\n",
		"Destination", "Gateway", "Genmask", "Flags", "Metric", "Ref", "Use", "Iface")
	for _, r := range v4 {
		gw := "0.0.0.0"
		if r.gateway.IsValid() {
			gw = r.gateway.String()
		}
		mask := net.IP(net.CIDRMask(r.dst.Bits(), 32)).String()
		fmt.Fprintf(&b, "%-15s %-15s %-15s %-5s %-6d %-3d %6d %s\n",
			r.dst.Addr(), gw, mask, r.flags, r.metric, 0, 0, r.iface)
	}

	b.WriteString("Kernel IPv6 routing table\n")
	fmt.Fprintf(&b, "%-30s %-26s %-4s %-3s %-3s %-5s %s\n",
		"Destination", "Next Hop", "Flag", "Met", "Ref", "Use", "If")
	for _, r := range v6 {
		gw := "::"
		if r.gateway.IsValid() {
			gw = r.gateway.String()
		}
		fmt.Fprintf(&b, "%-30s %-26s %-4s %-3d %-3d %-5d %s\n",
			r.dst, gw, r.flags, r.metric, 0, 0, r.iface)
	}
	return b.String()
}

// linuxRows converts one netlink route into rows, one per next hop.
func linuxRows(m rtnetlink.RouteMessage) []linuxRow {
	table := uint32(m.Table)
	if m.Attributes.Table != 0 {
		table = m.Attributes.Table
	}
	if table != unix.RT_TABLE_MAIN {
		return nil
	}

	reject := false
	switch m.Type {
	case unix.RTN_UNICAST:
	case unix.RTN_UNREACHABLE, unix.RTN_PROHIBIT, unix.RTN_BLACKHOLE:
		reject = true
	default:
		return nil
	}

	var base netip.Addr
	switch m.Family {
	case unix.AF_INET:
		base = netip.IPv4Unspecified()
	case unix.AF_INET6:
		base = netip.IPv6Unspecified()
	default:
		return nil
	}
	if a, ok := netip.AddrFromSlice(m.Attributes.Dst); ok {
		base = a
		if m.Family == unix.AF_INET {
			base = a.Unmap()
		}
	}
	dst := netip.PrefixFrom(base, int(m.DstLength)).Masked()
	if !dst.IsValid() {
		slog.Debug("Skipping kernel route with invalid destination", "dst", m.Attributes.Dst, "len", m.DstLength)
		return nil
	}

	type hop struct {
		gw    net.IP
		index uint32
	}
	hops := []hop{{m.Attributes.Gateway, m.Attributes.OutIface}}
	if len(m.Attributes.Multipath) > 0 {
		hops = hops[:0]
		for _, nh := range m.Attributes.Multipath {
			hops = append(hops, hop{nh.Gateway, nh.Hop.IfIndex})
		}
	}

	var rows []linuxRow
	for _, h := range hops {
		r := linuxRow{dst: dst, metric: m.Attributes.Priority}
		if gw, ok := netip.AddrFromSlice(h.gw); ok && !gw.IsUnspecified() {
			r.gateway = gw
			if dst.Addr().Is4() {
				r.gateway = gw.Unmap()
			}
		}

		switch {
		case h.index != 0:
			name, err := interfaceName(int(h.index))
			if err != nil {
				slog.Debug("Skipping kernel route on unknown interface", "dst", dst, "index", h.index, "err", err)
				continue
			}
			r.iface = name
		case reject:
			// route(8) shows reject routes on the loopback device.
			r.iface = "lo"
		default:
			continue
		}

		var f strings.Builder
		if reject {
			f.WriteByte('!')
		} else {
			f.WriteByte('U')
		}
		if r.gateway.IsValid() {
			f.WriteByte('G')
		}
		if dst.Bits() == dst.Addr().BitLen() {
			f.WriteByte('H')
		}
		if m.Protocol == unix.RTPROT_REDIRECT {
			f.WriteByte('D')
		}
		r.flags = f.String()
		rows = append(rows, r)
	}
	return rows
}
