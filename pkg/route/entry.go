// Package route models a parsed route table snapshot and resolves
// destination addresses against it by longest-prefix match.
package route

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/tkjaer/rtq/pkg/addr"
)

var (
	ErrFamilyMismatch   = errors.New("destination does not match entry family")
	ErrInvalidPrefix    = errors.New("invalid destination prefix")
	ErrEmptyInterface   = errors.New("empty interface")
	ErrHostPrefixLength = errors.New("host route without a full-length prefix")
)

// Entry is one row of a route table.
type Entry struct {
	Family      addr.Family
	Destination addr.Destination
	Gateway     Gateway
	Interface   string
	Flags       Flag

	// Diagnostic counters, nil when the snapshot did not carry them.
	Expire *time.Duration
	Refs   *uint64
	Use    *uint64
	Metric *uint64
}

// PrefixLen returns the destination prefix length.
func (e Entry) PrefixLen() int {
	return e.Destination.Prefix.Bits()
}

// Zone returns the IPv6 zone attached to the destination, if any.
func (e Entry) Zone() string {
	return e.Destination.Zone
}

// Prefix returns the masked destination prefix.
func (e Entry) Prefix() netip.Prefix {
	return e.Destination.Prefix
}

// IsDefault reports whether e is a default route.
func (e Entry) IsDefault() bool {
	return e.Destination.IsDefault()
}

// Contains reports whether a falls within the destination of e. Address
// families must match; zones are not compared.
func (e Entry) Contains(a netip.Addr) bool {
	if addr.FamilyOf(a) != e.Family {
		return false
	}
	return e.Destination.Contains(a)
}

// Validate checks the invariants every entry in a table must hold.
func (e Entry) Validate() error {
	p := e.Destination.Prefix
	if !e.Family.Valid() || !p.IsValid() {
		return ErrInvalidPrefix
	}
	if addr.FamilyOf(p.Addr()) != e.Family {
		return ErrFamilyMismatch
	}
	if p.Bits() > e.Family.Bits() || p != p.Masked() {
		return ErrInvalidPrefix
	}
	if e.Flags.Has(FlagHost) && p.Bits() != e.Family.Bits() {
		return ErrHostPrefixLength
	}
	if strings.TrimSpace(e.Interface) == "" {
		return ErrEmptyInterface
	}
	return nil
}

func (e Entry) String() string {
	dst := e.Destination.String()
	if e.IsDefault() {
		dst = "default"
	}
	return fmt.Sprintf("%s via %s dev %s [%s]", dst, e.Gateway, e.Interface, e.Flags)
}
