// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

const (
	registerBorderBit = 1 << 30
	registerNullBit   = 1 << 31
)

// Register is a decoded Register message: flags plus the encapsulated
// inner IP datagram (or a dummy header, when Null is set).
type Register struct {
	Border bool
	Null   bool
	Inner  []byte
}

// DecodeRegister parses a Register message body. Per spec §6.1 the
// checksum covers only the first 8 octets (header + flags word); callers
// verify that separately via VerifyChecksum before calling this.
func DecodeRegister(b []byte) (Register, error) {
	if len(b) < 4 {
		return Register{}, pimerr.New(pimerr.KindMalformed, "Register flags truncated")
	}
	flags := getUint32(b[0:4])
	return Register{
		Border: flags&registerBorderBit != 0,
		Null:   flags&registerNullBit != 0,
		Inner:  b[4:],
	}, nil
}

// EncodeRegister serializes a Register message. Checksum covers only the
// first 8 octets of the resulting buffer.
func EncodeRegister(r Register) []byte {
	var flags uint32
	if r.Border {
		flags |= registerBorderBit
	}
	if r.Null {
		flags |= registerNullBit
	}
	body := make([]byte, 4)
	putUint32(body, flags)
	body = append(body, r.Inner...)

	buf := append(encodeHeader(TypeRegister), body...)
	finalizeChecksum(buf, TypeRegister)
	return buf
}

// RegisterStop is a decoded Register-Stop message.
type RegisterStop struct {
	Group  addr.Prefix
	Source addr.Addr
}

// DecodeRegisterStop parses a Register-Stop message body.
func DecodeRegisterStop(b []byte) (RegisterStop, error) {
	group, _, rest, err := decodeGroup(b)
	if err != nil {
		return RegisterStop{}, err
	}
	source, _, err := decodeUnicast(rest)
	if err != nil {
		return RegisterStop{}, err
	}
	return RegisterStop{Group: group, Source: source}, nil
}

// EncodeRegisterStop serializes a Register-Stop message.
func EncodeRegisterStop(rs RegisterStop) []byte {
	body := encodeGroup(rs.Group, GroupFlags{})
	body = append(body, encodeUnicast(rs.Source)...)

	buf := append(encodeHeader(TypeRegisterStop), body...)
	finalizeChecksum(buf, TypeRegisterStop)
	return buf
}
