// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	pimerr "pim-sm.dev/pimd/internal/errors"
)

// Hello option types recognized by spec §6.1.
const (
	OptHoldtime      uint16 = 1
	OptLANPruneDelay uint16 = 2
	OptDRPriority    uint16 = 19
	OptGenID         uint16 = 20
)

// Hello is a parsed Hello message body: a set of recognized options plus
// a count of unrecognized (skipped) TLVs.
type Hello struct {
	Holdtime          *uint16
	PropagationDelay  *uint16 // LAN-Prune-Delay option, ms
	OverrideInterval  *uint16 // LAN-Prune-Delay option, ms
	TBit              bool    // LAN-Prune-Delay T bit: tracking support disabled
	DRPriority        *uint32
	GenID             *uint32
	UnknownOptsCount  int
}

// DecodeHello parses a Hello message body (after the common header).
func DecodeHello(b []byte) (Hello, error) {
	var h Hello
	for len(b) > 0 {
		if len(b) < 4 {
			return Hello{}, pimerr.New(pimerr.KindMalformed, "Hello option header truncated")
		}
		optType := getUint16(b[0:2])
		optLen := int(getUint16(b[2:4]))
		b = b[4:]
		if len(b) < optLen {
			return Hello{}, pimerr.New(pimerr.KindMalformed, "Hello option value truncated")
		}
		val := b[:optLen]
		b = b[optLen:]

		switch optType {
		case OptHoldtime:
			if optLen != 2 {
				return Hello{}, pimerr.Errorf(pimerr.KindMalformed, "Holdtime option bad length %d", optLen)
			}
			v := getUint16(val)
			h.Holdtime = &v
		case OptLANPruneDelay:
			if optLen != 4 {
				return Hello{}, pimerr.Errorf(pimerr.KindMalformed, "LAN-Prune-Delay option bad length %d", optLen)
			}
			delayField := getUint16(val[0:2])
			tBit := delayField&0x8000 != 0
			delay := delayField &^ 0x8000
			override := getUint16(val[2:4])
			h.PropagationDelay = &delay
			h.OverrideInterval = &override
			h.TBit = tBit
		case OptDRPriority:
			if optLen != 4 {
				return Hello{}, pimerr.Errorf(pimerr.KindMalformed, "DR-Priority option bad length %d", optLen)
			}
			v := getUint32(val)
			h.DRPriority = &v
		case OptGenID:
			if optLen != 4 {
				return Hello{}, pimerr.Errorf(pimerr.KindMalformed, "GenID option bad length %d", optLen)
			}
			v := getUint32(val)
			h.GenID = &v
		default:
			h.UnknownOptsCount++
		}
	}
	return h, nil
}

// EncodeHello serializes a Hello message (header + options + checksum).
func EncodeHello(h Hello) []byte {
	var opts []byte
	appendOpt := func(t uint16, val []byte) {
		tl := make([]byte, 4)
		putUint16(tl[0:2], t)
		putUint16(tl[2:4], uint16(len(val)))
		opts = append(opts, tl...)
		opts = append(opts, val...)
	}
	if h.Holdtime != nil {
		v := make([]byte, 2)
		putUint16(v, *h.Holdtime)
		appendOpt(OptHoldtime, v)
	}
	if h.PropagationDelay != nil && h.OverrideInterval != nil {
		v := make([]byte, 4)
		field := *h.PropagationDelay &^ 0x8000
		if h.TBit {
			field |= 0x8000
		}
		putUint16(v[0:2], field)
		putUint16(v[2:4], *h.OverrideInterval)
		appendOpt(OptLANPruneDelay, v)
	}
	if h.DRPriority != nil {
		v := make([]byte, 4)
		putUint32(v, *h.DRPriority)
		appendOpt(OptDRPriority, v)
	}
	if h.GenID != nil {
		v := make([]byte, 4)
		putUint32(v, *h.GenID)
		appendOpt(OptGenID, v)
	}

	buf := append(encodeHeader(TypeHello), opts...)
	finalizeChecksum(buf, TypeHello)
	return buf
}
