// Package addr turns the address, prefix and netmask tokens printed in
// route table snapshots into netip values tagged with their address family.
package addr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Family is the IP address family of an address or route entry.
type Family uint8

const (
	V4 Family = 4
	V6 Family = 6
)

// Bits returns the full bit width of addresses in the family, or 0 for an
// unknown family.
func (f Family) Bits() int {
	switch f {
	case V4:
		return 32
	case V6:
		return 128
	}
	return 0
}

// Valid reports whether f is IPv4 or IPv6.
func (f Family) Valid() bool {
	return f == V4 || f == V6
}

// Unspecified returns 0.0.0.0 or ::.
func (f Family) Unspecified() netip.Addr {
	if f == V6 {
		return netip.IPv6Unspecified()
	}
	return netip.IPv4Unspecified()
}

func (f Family) String() string {
	switch f {
	case V4:
		return "IPv4"
	case V6:
		return "IPv6"
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// FamilyOf returns the family of a. IPv4-mapped IPv6 addresses are IPv6.
func FamilyOf(a netip.Addr) Family {
	switch {
	case a.Is4():
		return V4
	case a.Is6():
		return V6
	}
	return 0
}

// Destination is a masked route destination prefix with an optional IPv6
// zone, e.g. fe80::%en0/64.
type Destination struct {
	Prefix netip.Prefix
	Zone   string
}

// Family returns the address family of the destination prefix.
func (d Destination) Family() Family {
	return FamilyOf(d.Prefix.Addr())
}

// IsDefault reports whether d is a default route destination (prefix length 0).
func (d Destination) IsDefault() bool {
	return d.Prefix.IsValid() && d.Prefix.Bits() == 0
}

// IsHost reports whether d covers exactly one address.
func (d Destination) IsHost() bool {
	return d.Prefix.IsValid() && d.Prefix.Bits() == d.Family().Bits()
}

// Contains reports whether a is inside the destination prefix. Zones on a are
// ignored; zone matching is up to the caller.
func (d Destination) Contains(a netip.Addr) bool {
	return d.Prefix.Contains(a.WithZone(""))
}

func (d Destination) String() string {
	if !d.Prefix.IsValid() {
		return "invalid"
	}
	ip := d.Prefix.Addr()
	if d.Zone != "" {
		ip = ip.WithZone(d.Zone)
	}
	return ip.String() + "/" + strconv.Itoa(d.Prefix.Bits())
}

var (
	errEmpty         = errors.New("empty token")
	errFamily        = errors.New("address family mismatch")
	errUnknownFamily = errors.New("unknown address family")
	errZone          = errors.New("unexpected zone")
	errOctets        = errors.New("invalid number of octets")
	errRange         = errors.New("out of range")
	errNonContiguous = errors.New("non-contiguous mask")
)

// SplitZone splits an IPv6 zone off a token. Any /bits suffix stays with the
// address part:
//
//	fe80::1%en0        -> fe80::1, en0
//	fe80::%utun0/64    -> fe80::/64, utun0
func SplitZone(tok string) (string, string) {
	i := strings.IndexByte(tok, '%')
	if i < 0 {
		return tok, ""
	}
	rest := tok[i+1:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return tok[:i] + rest[j:], rest[:j]
	}
	return tok[:i], rest
}

// ParseAddr parses a zone-free address of the given family. IPv4 accepts the
// network shorthand used by BSD netstat, where trailing zero octets are left
// out: "10" is 10.0.0.0 and "192.168.1" is 192.168.1.0.
func ParseAddr(tok string, fam Family) (netip.Addr, error) {
	switch fam {
	case V4:
		a, _, err := parseIPv4(tok)
		return a, err
	case V6:
		if tok == "" {
			return netip.Addr{}, addrError(tok, errEmpty)
		}
		a, err := netip.ParseAddr(tok)
		if err != nil {
			return netip.Addr{}, addrError(tok, err)
		}
		if !a.Is6() {
			return netip.Addr{}, addrError(tok, errFamily)
		}
		if a.Zone() != "" {
			return netip.Addr{}, addrError(tok, errZone)
		}
		return a, nil
	}
	return netip.Addr{}, addrError(tok, errUnknownFamily)
}

// parseIPv4 parses a dotted IPv4 address with 1 to 4 octets and reports how
// many octets were written.
func parseIPv4(tok string) (netip.Addr, int, error) {
	if tok == "" {
		return netip.Addr{}, 0, addrError(tok, errEmpty)
	}
	if strings.ContainsRune(tok, ':') {
		return netip.Addr{}, 0, addrError(tok, errFamily)
	}
	parts := strings.Split(tok, ".")
	if len(parts) > 4 {
		return netip.Addr{}, 0, addrError(tok, errOctets)
	}
	var b [4]byte
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return netip.Addr{}, 0, addrError(tok, err)
		}
		b[i] = byte(n)
	}
	return netip.AddrFrom4(b), len(parts), nil
}

// ParsePrefixLen parses an explicit CIDR suffix and checks it against the
// family's bit width.
func ParsePrefixLen(s string, fam Family) (int, error) {
	if !fam.Valid() {
		return 0, maskError(s, errUnknownFamily)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, maskError(s, err)
	}
	if n < 0 || n > fam.Bits() {
		return 0, maskError(s, errRange)
	}
	return n, nil
}

// PrefixLenFromMask derives a prefix length from a netmask such as
// 255.255.255.0 or ffff:ffff:ffff:ffff::. The wildcard masks "*", 0.0.0.0 and
// :: give 0.
func PrefixLenFromMask(mask string, fam Family) (int, error) {
	if !fam.Valid() {
		return 0, maskError(mask, errUnknownFamily)
	}
	if mask == "*" {
		return 0, nil
	}
	m, err := netip.ParseAddr(mask)
	if err != nil {
		return 0, maskError(mask, err)
	}
	if FamilyOf(m) != fam || m.Zone() != "" {
		return 0, maskError(mask, errFamily)
	}
	ones, bits := net.IPMask(m.AsSlice()).Size()
	if bits == 0 {
		return 0, maskError(mask, errNonContiguous)
	}
	return ones, nil
}

// ParseDestination parses the destination column of a route table row.
//
//	default          -> 0.0.0.0/0 or ::/0
//	192.168.1        -> 192.168.1.0/24 (8 bits per written octet)
//	224.0.0/4        -> 224.0.0.0/4
//	10.0.0.1         -> 10.0.0.1/32
//	fe80::%en0/64    -> fe80::/64 zone en0
//
// The returned prefix is always masked.
func ParseDestination(tok string, fam Family) (Destination, error) {
	if !fam.Valid() {
		return Destination{}, addrError(tok, errUnknownFamily)
	}
	if tok == "default" {
		return Destination{Prefix: netip.PrefixFrom(fam.Unspecified(), 0)}, nil
	}
	body, zone := SplitZone(tok)
	if zone != "" && fam != V6 {
		return Destination{}, addrError(tok, errZone)
	}
	addrPart, bitsPart, explicit := strings.Cut(body, "/")

	var (
		a    netip.Addr
		bits = fam.Bits()
		err  error
	)
	if fam == V4 {
		var n int
		a, n, err = parseIPv4(addrPart)
		if err != nil {
			return Destination{}, err
		}
		bits = 8 * n
	} else if a, err = ParseAddr(addrPart, V6); err != nil {
		return Destination{}, err
	}
	if explicit {
		if bits, err = ParsePrefixLen(bitsPart, fam); err != nil {
			return Destination{}, err
		}
	}
	return Destination{Prefix: netip.PrefixFrom(a, bits).Masked(), Zone: zone}, nil
}
