// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package register

import (
	"encoding/binary"

	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// VerifyNullRegisterInner validates a Null-Register's dummy inner IP
// header checksum before any RP-side state is touched, per spec §4.10.
// v4 carries a real IP header checksum over its 20-byte header; v6 has no
// header checksum field, so the dummy pseudo-header's payload checksum
// (covering the dummy PIM header that follows, per RFC 4601 4.4.1) is
// verified instead.
func VerifyNullRegisterInner(inner []byte) error {
	if len(inner) < 1 {
		return pimerr.New(pimerr.KindMalformed, "register: empty Null-Register inner header")
	}
	version := inner[0] >> 4
	switch version {
	case 4:
		return verifyV4Header(inner)
	case 6:
		return verifyV6PseudoHeader(inner)
	default:
		return pimerr.Errorf(pimerr.KindMalformed, "register: unrecognized inner IP version %d", version)
	}
}

func verifyV4Header(b []byte) error {
	if len(b) < 20 {
		return pimerr.New(pimerr.KindMalformed, "register: truncated dummy IPv4 header")
	}
	ihl := int(b[0]&0x0f) * 4
	if ihl < 20 || len(b) < ihl {
		return pimerr.New(pimerr.KindMalformed, "register: invalid dummy IPv4 header length")
	}
	if internetChecksum(b[:ihl]) != 0xffff {
		return pimerr.New(pimerr.KindMalformed, "register: dummy IPv4 header checksum mismatch")
	}
	return nil
}

// ipv6TrafficClass extracts the 8-bit Traffic Class field from the
// big-endian 32-bit ip6_flow word: 4 bits of version, 8 bits of traffic
// class, then the 20-bit flow label (RFC 2460 §3). This resolves the
// spec's Open Question by reading the field per RFC 2460 rather than
// mirroring any particular host's in-memory byte order, and the deviation
// is recorded in DESIGN.md.
func ipv6TrafficClass(ip6Flow uint32) uint8 {
	return uint8(ip6Flow >> 20)
}

// verifyV6PseudoHeader validates a dummy IPv6 Null-Register inner header.
// IPv6 carries no header checksum (RFC 2460 §8.1), so the dummy encoding
// appends a 2-octet checksum trailer after the 40-octet header, computed
// over the pseudo-header (src, dst, upper-layer length, next header) the
// way the real PIM checksum would be extended across an IPv6 payload.
func verifyV6PseudoHeader(b []byte) error {
	if len(b) < 42 {
		return pimerr.New(pimerr.KindMalformed, "register: truncated dummy IPv6 header")
	}
	flow := binary.BigEndian.Uint32(b[0:4])
	_ = ipv6TrafficClass(flow) // extracted for TOS-copy bookkeeping by the DR path, not validated here

	payloadLen := binary.BigEndian.Uint16(b[4:6])
	nextHeader := b[6]

	pseudo := make([]byte, 42)
	copy(pseudo[0:32], b[8:40]) // src(16) + dst(16)
	binary.BigEndian.PutUint32(pseudo[32:36], uint32(payloadLen))
	pseudo[39] = nextHeader
	copy(pseudo[40:42], b[40:42])

	if internetChecksum(pseudo) != 0xffff {
		return pimerr.New(pimerr.KindMalformed, "register: dummy IPv6 pseudo-header checksum mismatch")
	}
	return nil
}

// dummyV4Header builds a minimal 20-byte IPv4 header (no options) with a
// correct header checksum, satisfying verifyV4Header on the RP side.
func dummyV4Header(src, dst addr.Addr) []byte {
	b := make([]byte, 20)
	b[0] = 0x45
	b[9] = 103 // protocol: PIM
	s, d := src.As4(), dst.As4()
	copy(b[12:16], s[:])
	copy(b[16:20], d[:])
	csum := ^internetChecksum(b)
	binary.BigEndian.PutUint16(b[10:12], csum)
	return b
}

// dummyV6PseudoHeader builds the 42-byte dummy IPv6 header plus checksum
// trailer format verifyV6PseudoHeader expects.
func dummyV6PseudoHeader(src, dst addr.Addr) []byte {
	b := make([]byte, 42)
	b[0] = 0x60
	b[6] = 103 // next header: PIM
	s, d := src.As16(), dst.As16()
	copy(b[8:24], s[:])
	copy(b[24:40], d[:])

	pseudo := make([]byte, 42)
	copy(pseudo[0:32], b[8:40])
	pseudo[39] = b[6]
	csum := ^internetChecksum(pseudo[:40])
	binary.BigEndian.PutUint16(b[40:42], csum)
	return b
}

func internetChecksum(b []byte) uint16 {
	var sum uint32
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return uint16(sum)
}
