package route

import (
	"net"
	"net/netip"
)

// GatewayKind says what the gateway column of an entry held.
type GatewayKind uint8

const (
	GatewayNone GatewayKind = iota // absent, "*" or the unspecified address
	GatewayAddr                    // a next hop address
	GatewayLink                    // an interface token such as link#4
	GatewayMAC                     // a link layer address (cloned host routes)
)

func (k GatewayKind) String() string {
	switch k {
	case GatewayAddr:
		return "addr"
	case GatewayLink:
		return "link"
	case GatewayMAC:
		return "mac"
	}
	return "none"
}

// Gateway is the next hop of an entry. Only one of Addr, Link or MAC is set,
// as selected by Kind.
type Gateway struct {
	Kind GatewayKind
	Addr netip.Addr
	Link string
	MAC  net.HardwareAddr
}

// AddrGateway returns a next hop gateway for a.
func AddrGateway(a netip.Addr) Gateway {
	return Gateway{Kind: GatewayAddr, Addr: a}
}

// LinkGateway returns a directly attached gateway named by a link token.
func LinkGateway(link string) Gateway {
	return Gateway{Kind: GatewayLink, Link: link}
}

// IP returns the next hop address if the gateway is one.
func (g Gateway) IP() (netip.Addr, bool) {
	if g.Kind != GatewayAddr {
		return netip.Addr{}, false
	}
	return g.Addr, true
}

func (g Gateway) String() string {
	switch g.Kind {
	case GatewayAddr:
		return g.Addr.String()
	case GatewayLink:
		return g.Link
	case GatewayMAC:
		return g.MAC.String()
	}
	return "-"
}
