// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package addr provides the address, prefix, and per-vif bitset primitives
// every PIM subsystem is built on (spec §3.1). A single daemon instance is
// parameterised by one address family; Addr and Prefix wrap netip types
// directly rather than re-implementing byte-slice address math.
package addr

import (
	"fmt"
	"net/netip"
)

// Family distinguishes the address family a PIM instance was built for.
type Family int

const (
	V4 Family = iota
	V6
)

func (f Family) String() string {
	if f == V6 {
		return "v6"
	}
	return "v4"
}

// Addr is an IP address participating in the PIM instance.
type Addr struct {
	netip.Addr
}

// New wraps a netip.Addr.
func New(a netip.Addr) Addr { return Addr{a} }

// MustParse parses s or panics; used for constants in tests and defaults.
func MustParse(s string) Addr { return Addr{netip.MustParseAddr(s)} }

// Zero reports whether this is the unset/sentinel address (e.g. the RP
// table's "no RP" sentinel with rp_addr = 0).
func (a Addr) Zero() bool { return !a.IsValid() || a.Addr == netip.Addr{} }

// IsUnicast reports whether the address is a plausible unicast address:
// valid, not the unspecified address, and not multicast.
func (a Addr) IsUnicast() bool {
	return a.IsValid() && !a.Addr.IsUnspecified() && !a.Addr.IsMulticast()
}

// IsMulticast reports whether the address is in the multicast range.
func (a Addr) IsMulticast() bool {
	return a.IsValid() && a.Addr.IsMulticast()
}

// IsLinkLocalMulticast reports whether the address is within the
// link-local multicast scope (224.0.0.0/24 for v4, ff02::/16 for v6).
func (a Addr) IsLinkLocalMulticast() bool {
	return a.IsValid() && a.Addr.IsLinkLocalMulticast()
}

// IsNodeLocalMulticast reports whether the address is scoped to the node
// itself (interface-local scope in v6 terms).
func (a Addr) IsNodeLocalMulticast() bool {
	return a.IsValid() && a.Addr.IsInterfaceLocalMulticast()
}

func (a Addr) String() string {
	if !a.IsValid() {
		return "<none>"
	}
	return a.Addr.String()
}

// Less orders addresses for deterministic tiebreaks (spec §4.1 step 4,
// §4.7 Assert metric tiebreak, §4.8 BSR priority tiebreak).
func (a Addr) Less(b Addr) bool {
	return a.Addr.Less(b.Addr)
}

// Prefix is an address plus mask length.
type Prefix struct {
	netip.Prefix
}

// NewPrefix builds a Prefix from an address and mask length, masking the
// address to the given length (matching the wire encoding which stores
// masked group/source prefixes).
func NewPrefix(a Addr, bits int) Prefix {
	p := netip.PrefixFrom(a.Addr, bits)
	return Prefix{p.Masked()}
}

// MustParsePrefix parses s (e.g. "239.0.0.0/8") or panics.
func MustParsePrefix(s string) Prefix { return Prefix{netip.MustParsePrefix(s)} }

// Contains reports whether the prefix contains the address.
func (p Prefix) Contains(a Addr) bool {
	return p.IsValid() && a.IsValid() && p.Prefix.Contains(a.Addr)
}

// ContainsPrefix reports whether p fully contains other (other is equal
// to or more specific than p).
func (p Prefix) ContainsPrefix(other Prefix) bool {
	if !p.IsValid() || !other.IsValid() {
		return false
	}
	return p.Bits() <= other.Bits() && p.Prefix.Contains(other.Masked().Addr())
}

// Overlaps reports whether the two prefixes share any address.
func (p Prefix) Overlaps(other Prefix) bool {
	if !p.IsValid() || !other.IsValid() {
		return false
	}
	return p.Prefix.Overlaps(other.Prefix)
}

func (p Prefix) String() string {
	if !p.IsValid() {
		return "<none>"
	}
	return p.Prefix.String()
}

// LongerThan reports whether p is a more specific (longer) prefix than
// other, implementing the RP table / BSR group-prefix longest-match
// tiebreak (spec §4.1 step 1).
func (p Prefix) LongerThan(other Prefix) bool {
	return p.Bits() > other.Bits()
}

// FullMulticast returns the "match all multicast groups" prefix for the
// given family: 224.0.0.0/4 or ff00::/8.
func FullMulticast(f Family) Prefix {
	if f == V6 {
		return MustParsePrefix("ff00::/8")
	}
	return MustParsePrefix("224.0.0.0/4")
}

// Validate returns an error if a is not a usable unicast address for the
// given role description (used by config validation and wire decode).
func Validate(a Addr, role string) error {
	if !a.IsUnicast() {
		return fmt.Errorf("%s: not a unicast address: %v", role, a)
	}
	return nil
}
