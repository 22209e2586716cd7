// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// BootstrapRP is one candidate-RP record within a Bootstrap group-prefix block.
type BootstrapRP struct {
	Addr            addr.Addr
	HoldtimeSeconds uint16
	Priority        uint8
}

// BootstrapGroupPrefix is one group-prefix block of a Bootstrap message.
type BootstrapGroupPrefix struct {
	Group             addr.Prefix
	RPCount           uint8 // total RPs for this prefix across all fragments
	FragmentRPCount   uint8 // RPs carried in this fragment
	RPs               []BootstrapRP
}

// Bootstrap is a fully decoded Bootstrap message.
type Bootstrap struct {
	FragmentTag  uint16
	HashMaskLen  uint8
	BSRPriority  uint8
	BSRAddr      addr.Addr
	GroupPrefixes []BootstrapGroupPrefix
}

// DecodeBootstrap parses a Bootstrap message body.
func DecodeBootstrap(b []byte) (Bootstrap, error) {
	if len(b) < 4 {
		return Bootstrap{}, pimerr.New(pimerr.KindMalformed, "Bootstrap header truncated")
	}
	bs := Bootstrap{
		FragmentTag: getUint16(b[0:2]),
		HashMaskLen: b[2],
		BSRPriority: b[3],
	}
	rest := b[4:]
	bsrAddr, rest, err := decodeUnicast(rest)
	if err != nil {
		return Bootstrap{}, err
	}
	bs.BSRAddr = bsrAddr

	for len(rest) > 0 {
		group, _, remain, err := decodeGroup(rest)
		if err != nil {
			return Bootstrap{}, err
		}
		rest = remain
		if len(rest) < 4 {
			return Bootstrap{}, pimerr.New(pimerr.KindMalformed, "Bootstrap group-prefix header truncated")
		}
		gp := BootstrapGroupPrefix{
			Group:           group,
			RPCount:         rest[0],
			FragmentRPCount: rest[1],
		}
		rest = rest[4:]
		for i := 0; i < int(gp.FragmentRPCount); i++ {
			rpAddr, remain, err := decodeUnicast(rest)
			if err != nil {
				return Bootstrap{}, err
			}
			rest = remain
			if len(rest) < 4 {
				return Bootstrap{}, pimerr.New(pimerr.KindMalformed, "Bootstrap RP record truncated")
			}
			holdtime := getUint16(rest[0:2])
			priority := rest[2]
			rest = rest[4:]
			gp.RPs = append(gp.RPs, BootstrapRP{Addr: rpAddr, HoldtimeSeconds: holdtime, Priority: priority})
		}
		bs.GroupPrefixes = append(bs.GroupPrefixes, gp)
	}
	return bs, nil
}

// EncodeBootstrap serializes a Bootstrap message (header + body + checksum).
func EncodeBootstrap(bs Bootstrap) []byte {
	body := make([]byte, 4)
	putUint16(body[0:2], bs.FragmentTag)
	body[2] = bs.HashMaskLen
	body[3] = bs.BSRPriority
	body = append(body, encodeUnicast(bs.BSRAddr)...)

	for _, gp := range bs.GroupPrefixes {
		body = append(body, encodeGroup(gp.Group, GroupFlags{})...)
		body = append(body, gp.RPCount, uint8(len(gp.RPs)), 0, 0)
		for _, rp := range gp.RPs {
			body = append(body, encodeUnicast(rp.Addr)...)
			rec := make([]byte, 4)
			putUint16(rec[0:2], rp.HoldtimeSeconds)
			rec[2] = rp.Priority
			body = append(body, rec...)
		}
	}

	buf := append(encodeHeader(TypeBootstrap), body...)
	finalizeChecksum(buf, TypeBootstrap)
	return buf
}
