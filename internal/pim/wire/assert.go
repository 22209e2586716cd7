// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

const assertRBit = 1 << 31

// Assert is a fully decoded Assert message.
type Assert struct {
	Group      addr.Prefix
	Source     addr.Addr
	RPTBit     bool
	Preference uint32
	Metric     uint32
}

// DecodeAssert parses an Assert message body.
func DecodeAssert(b []byte) (Assert, error) {
	group, _, rest, err := decodeGroup(b)
	if err != nil {
		return Assert{}, err
	}
	source, rest, err := decodeUnicast(rest)
	if err != nil {
		return Assert{}, err
	}
	if len(rest) < 8 {
		return Assert{}, pimerr.New(pimerr.KindMalformed, "Assert metric fields truncated")
	}
	prefField := getUint32(rest[0:4])
	metric := getUint32(rest[4:8])
	return Assert{
		Group:      group,
		Source:     source,
		RPTBit:     prefField&assertRBit != 0,
		Preference: prefField &^ assertRBit,
		Metric:     metric,
	}, nil
}

// EncodeAssert serializes an Assert message (header + body + checksum).
func EncodeAssert(a Assert) []byte {
	body := encodeGroup(a.Group, GroupFlags{})
	body = append(body, encodeUnicast(a.Source)...)
	prefField := a.Preference &^ assertRBit
	if a.RPTBit {
		prefField |= assertRBit
	}
	tail := make([]byte, 8)
	putUint32(tail[0:4], prefField)
	putUint32(tail[4:8], a.Metric)
	body = append(body, tail...)

	buf := append(encodeHeader(TypeAssert), body...)
	finalizeChecksum(buf, TypeAssert)
	return buf
}
