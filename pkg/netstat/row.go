package netstat

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/tkjaer/rtq/pkg/addr"
	"github.com/tkjaer/rtq/pkg/route"
)

var (
	errShortRow         = errors.New("fewer tokens than the header requires")
	errHostPrefix       = errors.New("host flag on a network prefix")
	errMissingInterface = errors.New("no interface")
	errBadGateway       = errors.New("unrecognized gateway")
)

// parseRow builds an entry from the tokens of one data row. A non-zero
// Reason means the row is skipped.
func (s *section) parseRow(fields []string) (route.Entry, Reason, error) {
	if len(fields) < s.minTokens {
		return route.Entry{}, ReasonShortRow, fmt.Errorf("%w: got %d, want %d", errShortRow, len(fields), s.minTokens)
	}

	e := route.Entry{Family: s.family}

	e.Interface = s.field(fields, colInterface)
	if e.Interface == "" || e.Interface == "-" || e.Interface == "*" {
		return route.Entry{}, ReasonMissingInterface, errMissingInterface
	}
	e.Flags = route.ParseFlags(s.field(fields, colFlags))

	dst, reason, err := s.parseDestination(s.field(fields, colDestination), s.field(fields, colMask), e.Flags)
	if reason != 0 {
		return route.Entry{}, reason, err
	}
	e.Destination = dst
	if dst.IsDefault() {
		e.Flags |= route.FlagDefault
	}

	if e.Gateway, err = parseGateway(s.field(fields, colGateway)); err != nil {
		return route.Entry{}, ReasonMalformedToken, err
	}
	if e.Gateway.Kind != route.GatewayAddr {
		e.Flags |= route.FlagOnLink
	}

	e.Expire = parseExpire(s.field(fields, colExpire))
	e.Refs = parseCounter(s.field(fields, colRefs))
	e.Use = parseCounter(s.field(fields, colUse))
	e.Metric = parseCounter(s.field(fields, colMetric))
	return e, 0, nil
}

// parseDestination resolves the destination column, with the mask column
// supplying the prefix length when the header has one.
func (s *section) parseDestination(tok, mask string, flags route.Flag) (addr.Destination, Reason, error) {
	fam := s.family
	explicit := tok == "default" || strings.Contains(tok, "/")

	var (
		dst addr.Destination
		err error
	)
	if s.has(colMask) && !explicit {
		body, zone := addr.SplitZone(tok)
		a, err := addr.ParseAddr(body, fam)
		if err != nil {
			return dst, ReasonMalformedToken, err
		}
		bits, err := addr.PrefixLenFromMask(mask, fam)
		if err != nil {
			return dst, ReasonMalformedToken, err
		}
		dst = addr.Destination{Prefix: netip.PrefixFrom(a, bits).Masked(), Zone: zone}
		explicit = true
	} else if dst, err = addr.ParseDestination(tok, fam); err != nil {
		return dst, ReasonMalformedToken, err
	}

	if flags.Has(route.FlagHost) && !dst.IsHost() {
		if explicit {
			return addr.Destination{}, ReasonHostPrefixMismatch, fmt.Errorf("%w: %s", errHostPrefix, dst)
		}
		// Shorthand such as "10.1" with H names the padded host address.
		dst.Prefix = netip.PrefixFrom(dst.Prefix.Addr(), fam.Bits())
	}
	return dst, 0, nil
}

// parseGateway maps the gateway column to a route.Gateway.
//
//	*, -, default, 0.0.0.0, ::      none
//	link#4                          link
//	192.0.2.1, fe80::1%en0          address
//	0:11:22:33:44:55                MAC
//	en0                             link
func parseGateway(tok string) (route.Gateway, error) {
	switch tok {
	case "", "*", "-", "default":
		return route.Gateway{}, nil
	}
	if strings.HasPrefix(tok, "link#") {
		return route.LinkGateway(tok), nil
	}

	body, zone := addr.SplitZone(tok)
	if a, err := netip.ParseAddr(body); err == nil {
		if a.IsUnspecified() {
			return route.Gateway{}, nil
		}
		return route.AddrGateway(a.WithZone(zone)), nil
	}

	if mac, ok := parseMAC(tok); ok {
		return route.Gateway{Kind: route.GatewayMAC, MAC: mac}, nil
	}
	if isIdentifier(tok) {
		return route.LinkGateway(tok), nil
	}
	return route.Gateway{}, fmt.Errorf("%w %q", errBadGateway, tok)
}

// parseMAC accepts the colon form BSD netstat prints with leading zeros
// dropped (0:1c:42:0:0:18) besides the forms net.ParseMAC knows.
func parseMAC(tok string) (net.HardwareAddr, bool) {
	groups := strings.Split(tok, ":")
	if len(groups) == 6 {
		for i, g := range groups {
			if len(g) == 0 || len(g) > 2 || !isHex(g) {
				return nil, false
			}
			if len(g) == 1 {
				groups[i] = "0" + g
			}
		}
		tok = strings.Join(groups, ":")
	}
	mac, err := net.ParseMAC(tok)
	if err != nil {
		return nil, false
	}
	return mac, true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// isIdentifier reports whether tok looks like an interface name.
func isIdentifier(tok string) bool {
	if tok == "" || !('a' <= tok[0] && tok[0] <= 'z' || 'A' <= tok[0] && tok[0] <= 'Z') {
		return false
	}
	for i := 1; i < len(tok); i++ {
		c := tok[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '.' || c == '_' || c == '-') {
			return false
		}
	}
	return true
}

// parseExpire reads an expiry in seconds. "!" and "-" mean none.
func parseExpire(tok string) *time.Duration {
	n := parseCounter(tok)
	if n == nil {
		return nil
	}
	d := time.Duration(*n) * time.Second
	return &d
}

func parseCounter(tok string) *uint64 {
	if tok == "" {
		return nil
	}
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
