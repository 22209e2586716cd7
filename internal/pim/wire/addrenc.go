// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"encoding/binary"
	"net/netip"

	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// AFI values for the encoded-address family octet.
const (
	afiIPv4 = 1
	afiIPv6 = 2
)

const encodingNative = 0

func afiFor(f addr.Family) uint8 {
	if f == addr.V6 {
		return afiIPv6
	}
	return afiIPv4
}

func addrLen(afi uint8) int {
	if afi == afiIPv6 {
		return 16
	}
	return 4
}

// encodeUnicast writes an encoded-unicast address: family | encoding | addr.
func encodeUnicast(a addr.Addr) []byte {
	afi := afiFor(family(a))
	out := append([]byte{afi, encodingNative}, a.AsSlice()...)
	return out
}

func family(a addr.Addr) addr.Family {
	if a.Is6() && !a.Is4In6() {
		return addr.V6
	}
	return addr.V4
}

func decodeUnicast(b []byte) (addr.Addr, []byte, error) {
	if len(b) < 2 {
		return addr.Addr{}, nil, pimerr.New(pimerr.KindMalformed, "encoded-unicast truncated")
	}
	afi, encoding := b[0], b[1]
	if encoding != encodingNative {
		return addr.Addr{}, nil, pimerr.Errorf(pimerr.KindMalformed, "unsupported address encoding %d", encoding)
	}
	n := addrLen(afi)
	if afi != afiIPv4 && afi != afiIPv6 {
		return addr.Addr{}, nil, pimerr.Errorf(pimerr.KindMalformed, "unsupported address family %d", afi)
	}
	if len(b) < 2+n {
		return addr.Addr{}, nil, pimerr.New(pimerr.KindMalformed, "encoded-unicast truncated")
	}
	ip, ok := netip.AddrFromSlice(b[2 : 2+n])
	if !ok {
		return addr.Addr{}, nil, pimerr.New(pimerr.KindMalformed, "invalid encoded-unicast address bytes")
	}
	a := addr.New(ip)
	if !a.IsUnicast() {
		return addr.Addr{}, nil, pimerr.Errorf(pimerr.KindMalformed, "encoded-unicast is not unicast: %v", a)
	}
	return a, b[2+n:], nil
}

// GroupFlags are the reserved-flags octet bits of an encoded-group address.
type GroupFlags struct {
	// AdminScoped is the Z bit: administratively-scoped group.
	AdminScoped bool
}

const groupFlagZ = 0x01

func encodeGroup(p addr.Prefix, flags GroupFlags) []byte {
	a := addr.New(p.Addr())
	afi := afiFor(family(a))
	var f uint8
	if flags.AdminScoped {
		f |= groupFlagZ
	}
	out := []byte{afi, encodingNative, f, uint8(p.Bits())}
	out = append(out, a.AsSlice()...)
	return out
}

func decodeGroup(b []byte) (addr.Prefix, GroupFlags, []byte, error) {
	if len(b) < 4 {
		return addr.Prefix{}, GroupFlags{}, nil, pimerr.New(pimerr.KindMalformed, "encoded-group truncated")
	}
	afi, encoding, f, maskLen := b[0], b[1], b[2], b[3]
	if encoding != encodingNative {
		return addr.Prefix{}, GroupFlags{}, nil, pimerr.Errorf(pimerr.KindMalformed, "unsupported group encoding %d", encoding)
	}
	n := addrLen(afi)
	if afi != afiIPv4 && afi != afiIPv6 {
		return addr.Prefix{}, GroupFlags{}, nil, pimerr.Errorf(pimerr.KindMalformed, "unsupported group family %d", afi)
	}
	if int(maskLen) > n*8 {
		return addr.Prefix{}, GroupFlags{}, nil, pimerr.Errorf(pimerr.KindMalformed, "invalid group mask length %d", maskLen)
	}
	if len(b) < 4+n {
		return addr.Prefix{}, GroupFlags{}, nil, pimerr.New(pimerr.KindMalformed, "encoded-group truncated")
	}
	ip, ok := netip.AddrFromSlice(b[4 : 4+n])
	if !ok {
		return addr.Prefix{}, GroupFlags{}, nil, pimerr.New(pimerr.KindMalformed, "invalid encoded-group address bytes")
	}
	ga := addr.New(ip)
	if !ga.IsMulticast() {
		return addr.Prefix{}, GroupFlags{}, nil, pimerr.Errorf(pimerr.KindMalformed, "encoded-group is not multicast: %v", ga)
	}
	p := addr.NewPrefix(ga, int(maskLen))
	return p, GroupFlags{AdminScoped: f&groupFlagZ != 0}, b[4+n:], nil
}

// SourceFlags are the S/W/R bits of an encoded-source address.
type SourceFlags struct {
	Sparse       bool // S bit
	WildcardBit  bool // W bit — (*,G) join/prune entries
	RPTBit       bool // R bit — (S,G,rpt) entries
}

const (
	sourceFlagS = 0x04
	sourceFlagW = 0x02
	sourceFlagR = 0x01
)

func encodeSource(a addr.Addr, maskLen int, flags SourceFlags) []byte {
	afi := afiFor(family(a))
	var f uint8
	if flags.Sparse {
		f |= sourceFlagS
	}
	if flags.WildcardBit {
		f |= sourceFlagW
	}
	if flags.RPTBit {
		f |= sourceFlagR
	}
	out := []byte{afi, encodingNative, f, uint8(maskLen)}
	out = append(out, a.AsSlice()...)
	return out
}

func decodeSource(b []byte) (addr.Addr, int, SourceFlags, []byte, error) {
	if len(b) < 4 {
		return addr.Addr{}, 0, SourceFlags{}, nil, pimerr.New(pimerr.KindMalformed, "encoded-source truncated")
	}
	afi, encoding, f, maskLen := b[0], b[1], b[2], b[3]
	if encoding != encodingNative {
		return addr.Addr{}, 0, SourceFlags{}, nil, pimerr.Errorf(pimerr.KindMalformed, "unsupported source encoding %d", encoding)
	}
	n := addrLen(afi)
	if afi != afiIPv4 && afi != afiIPv6 {
		return addr.Addr{}, 0, SourceFlags{}, nil, pimerr.Errorf(pimerr.KindMalformed, "unsupported source family %d", afi)
	}
	if len(b) < 4+n {
		return addr.Addr{}, 0, SourceFlags{}, nil, pimerr.New(pimerr.KindMalformed, "encoded-source truncated")
	}
	ip, ok := netip.AddrFromSlice(b[4 : 4+n])
	if !ok {
		return addr.Addr{}, 0, SourceFlags{}, nil, pimerr.New(pimerr.KindMalformed, "invalid encoded-source address bytes")
	}
	sa := addr.New(ip)
	flags := SourceFlags{
		Sparse:      f&sourceFlagS != 0,
		WildcardBit: f&sourceFlagW != 0,
		RPTBit:      f&sourceFlagR != 0,
	}
	return sa, int(maskLen), flags, b[4+n:], nil
}

func putUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func getUint16(b []byte) uint16    { return binary.BigEndian.Uint16(b) }
func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getUint32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
