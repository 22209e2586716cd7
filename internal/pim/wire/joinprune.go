// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// JPSource is one encoded-source entry within a J/P group block.
type JPSource struct {
	Addr    addr.Addr
	MaskLen int
	Flags   SourceFlags
}

// JPGroup is one group block of a Join/Prune message.
type JPGroup struct {
	Group  addr.Prefix
	Joined []JPSource
	Pruned []JPSource
}

// JoinPrune is a fully decoded Join/Prune message. Entries accumulate into
// this value as the message is parsed; the caller commits them against the
// MRT only after decode succeeds in full, so a truncated message never
// mutates protocol state (spec §4.5).
type JoinPrune struct {
	UpstreamNeighbor addr.Addr
	HoldtimeSeconds  uint16
	Groups           []JPGroup
}

// DecodeJoinPrune parses a Join/Prune message body.
func DecodeJoinPrune(b []byte) (JoinPrune, error) {
	nbr, rest, err := decodeUnicast(b)
	if err != nil {
		return JoinPrune{}, err
	}
	if len(rest) < 4 {
		return JoinPrune{}, pimerr.New(pimerr.KindMalformed, "Join/Prune header truncated")
	}
	numGroups := int(rest[1])
	holdtime := getUint16(rest[2:4])
	rest = rest[4:]

	jp := JoinPrune{UpstreamNeighbor: nbr, HoldtimeSeconds: holdtime}
	for i := 0; i < numGroups; i++ {
		group, _, remain, err := decodeGroup(rest)
		if err != nil {
			return JoinPrune{}, err
		}
		rest = remain
		if len(rest) < 4 {
			return JoinPrune{}, pimerr.New(pimerr.KindMalformed, "Join/Prune group header truncated")
		}
		numJoined := int(getUint16(rest[0:2]))
		numPruned := int(getUint16(rest[2:4]))
		rest = rest[4:]

		g := JPGroup{Group: group}
		for j := 0; j < numJoined; j++ {
			sa, maskLen, flags, remain, err := decodeSource(rest)
			if err != nil {
				return JoinPrune{}, err
			}
			rest = remain
			g.Joined = append(g.Joined, JPSource{Addr: sa, MaskLen: maskLen, Flags: flags})
		}
		for j := 0; j < numPruned; j++ {
			sa, maskLen, flags, remain, err := decodeSource(rest)
			if err != nil {
				return JoinPrune{}, err
			}
			rest = remain
			g.Pruned = append(g.Pruned, JPSource{Addr: sa, MaskLen: maskLen, Flags: flags})
		}
		jp.Groups = append(jp.Groups, g)
	}
	return jp, nil
}

// EncodeJoinPrune serializes a Join/Prune message (header + body + checksum).
func EncodeJoinPrune(jp JoinPrune) []byte {
	body := encodeUnicast(jp.UpstreamNeighbor)
	body = append(body, 0) // Reserved
	body = append(body, uint8(len(jp.Groups)))
	ht := make([]byte, 2)
	putUint16(ht, jp.HoldtimeSeconds)
	body = append(body, ht...)

	for _, g := range jp.Groups {
		body = append(body, encodeGroup(g.Group, GroupFlags{})...)
		counts := make([]byte, 4)
		putUint16(counts[0:2], uint16(len(g.Joined)))
		putUint16(counts[2:4], uint16(len(g.Pruned)))
		body = append(body, counts...)
		for _, s := range g.Joined {
			body = append(body, encodeSource(s.Addr, s.MaskLen, s.Flags)...)
		}
		for _, s := range g.Pruned {
			body = append(body, encodeSource(s.Addr, s.MaskLen, s.Flags)...)
		}
	}

	buf := append(encodeHeader(TypeJoinPrune), body...)
	finalizeChecksum(buf, TypeJoinPrune)
	return buf
}
