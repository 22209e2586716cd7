// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// CandRPAdv is a decoded Candidate-RP-Advertisement message. An empty
// Groups list (PrefixCount == 0 on the wire) means "all multicast groups".
type CandRPAdv struct {
	Priority        uint8
	HoldtimeSeconds uint16
	RPAddr          addr.Addr
	Groups          []addr.Prefix
}

// DecodeCandRPAdv parses a Cand-RP-Adv message body.
func DecodeCandRPAdv(b []byte) (CandRPAdv, error) {
	if len(b) < 4 {
		return CandRPAdv{}, pimerr.New(pimerr.KindMalformed, "Cand-RP-Adv header truncated")
	}
	prefixCount := int(b[0])
	priority := b[1]
	holdtime := getUint16(b[2:4])
	rest := b[4:]

	rpAddr, rest, err := decodeUnicast(rest)
	if err != nil {
		return CandRPAdv{}, err
	}

	adv := CandRPAdv{Priority: priority, HoldtimeSeconds: holdtime, RPAddr: rpAddr}
	for i := 0; i < prefixCount; i++ {
		group, _, remain, err := decodeGroup(rest)
		if err != nil {
			return CandRPAdv{}, err
		}
		rest = remain
		adv.Groups = append(adv.Groups, group)
	}
	return adv, nil
}

// EncodeCandRPAdv serializes a Cand-RP-Adv message.
func EncodeCandRPAdv(adv CandRPAdv) []byte {
	body := []byte{uint8(len(adv.Groups)), adv.Priority, 0, 0}
	putUint16(body[2:4], adv.HoldtimeSeconds)
	body = append(body, encodeUnicast(adv.RPAddr)...)
	for _, g := range adv.Groups {
		body = append(body, encodeGroup(g, GroupFlags{})...)
	}

	buf := append(encodeHeader(TypeCandRPAdv), body...)
	finalizeChecksum(buf, TypeCandRPAdv)
	return buf
}
