// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package wire implements the PIM-SMv2 control-message codec (spec §6.1):
// the 4-byte common header, the encoded-address TLVs, and the per-type
// message bodies. Decoders never mutate caller state on partial failure —
// a message is fully parsed into a value type first, and only committed
// by the caller once decode succeeds, satisfying the "no partial commit"
// rule of spec §4.5/§7.
package wire

import (
	"encoding/binary"

	pimerr "pim-sm.dev/pimd/internal/errors"
)

// Version is the only PIM version this codec speaks.
const Version = 2

// Type enumerates the PIM message types carried in the common header.
type Type uint8

const (
	TypeHello        Type = 0
	TypeRegister     Type = 1
	TypeRegisterStop Type = 2
	TypeJoinPrune    Type = 3
	TypeBootstrap    Type = 4
	TypeAssert       Type = 5
	TypeGraft        Type = 6
	TypeGraftAck     Type = 7
	TypeCandRPAdv    Type = 8
)

func (t Type) String() string {
	switch t {
	case TypeHello:
		return "Hello"
	case TypeRegister:
		return "Register"
	case TypeRegisterStop:
		return "Register-Stop"
	case TypeJoinPrune:
		return "Join/Prune"
	case TypeBootstrap:
		return "Bootstrap"
	case TypeAssert:
		return "Assert"
	case TypeGraft:
		return "Graft"
	case TypeGraftAck:
		return "Graft-Ack"
	case TypeCandRPAdv:
		return "Cand-RP-Advertisement"
	default:
		return "unknown"
	}
}

// HeaderLen is the size of the common PIM header.
const HeaderLen = 4

// Header is the 4-byte common PIM header.
type Header struct {
	Version  uint8
	Type     Type
	Reserved uint8
	Checksum uint16
}

func decodeHeader(b []byte) (Header, []byte, error) {
	if len(b) < HeaderLen {
		return Header{}, nil, pimerr.Errorf(pimerr.KindMalformed, "PIM header truncated: %d bytes", len(b))
	}
	h := Header{
		Version:  b[0] >> 4,
		Type:     Type(b[0] & 0x0f),
		Reserved: b[1],
		Checksum: binary.BigEndian.Uint16(b[2:4]),
	}
	if h.Version != Version {
		return Header{}, nil, pimerr.Errorf(pimerr.KindMalformed, "unsupported PIM version %d", h.Version)
	}
	return h, b[HeaderLen:], nil
}

func encodeHeader(t Type) []byte {
	b := make([]byte, HeaderLen)
	b[0] = Version<<4 | uint8(t)&0x0f
	return b
}

// Internet checksum (RFC 1071), used over the full PIM message for every
// type except Register, which covers only its first 8 octets (spec §6.1).
func checksum(b []byte) uint16 {
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
	return ^uint16(sum)
}

// VerifyChecksum recomputes the checksum over buf (after zeroing the
// checksum field at offset 2:4) and compares it to the value on the wire.
// For Register messages only the first 8 octets participate.
func VerifyChecksum(buf []byte, t Type) bool {
	if len(buf) < HeaderLen {
		return false
	}
	scope := buf
	if t == TypeRegister && len(buf) >= 8 {
		scope = buf[:8]
	}
	tmp := make([]byte, len(scope))
	copy(tmp, scope)
	tmp[2] = 0
	tmp[3] = 0
	return checksum(tmp) == binary.BigEndian.Uint16(buf[2:4])
}

// finalizeChecksum writes the Internet checksum of buf's checksum scope
// into buf[2:4]. For Register messages, only the first 8 octets are
// covered by the checksum.
func finalizeChecksum(buf []byte, t Type) {
	buf[2], buf[3] = 0, 0
	scope := buf
	if t == TypeRegister && len(buf) >= 8 {
		scope = buf[:8]
	}
	binary.BigEndian.PutUint16(buf[2:4], checksum(scope))
}
