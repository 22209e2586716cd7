// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rp

import "pim-sm.dev/pimd/internal/pim/addr"

// PIM hash-function constants (spec §4.1 step 3 / RFC 4601 §4.7.2).
const (
	hashA    = 1103515245
	hashB    = 12345
	hashMod  = 1 << 31
	hashMask = hashMod - 1
)

// fold32 reduces an address (network byte order) to a single 32-bit value.
// For v4 this is simply the 4 address bytes as a big-endian uint32. For
// v6, each 32-bit lane of the 16-byte address is XOR-folded together —
// the byte order of the masked address is preserved exactly as received
// off the wire to stay bit-compatible with deployed peers (spec §9 Open
// Question, resolved this way per the original source's bitwise folding
// of ip6 words).
func fold32(a addr.Addr) uint32 {
	b := a.AsSlice()
	if len(b) == 4 {
		return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	}
	var v uint32
	for i := 0; i+4 <= len(b); i += 4 {
		lane := uint32(b[i])<<24 | uint32(b[i+1])<<16 | uint32(b[i+2])<<8 | uint32(b[i+3])
		v ^= lane
	}
	return v
}

// maskTo returns a with only the high maskLen bits retained (rest zeroed),
// i.e. "G & M" in the spec's hash formula.
func maskTo(a addr.Addr, maskLen int) addr.Addr {
	p := addr.NewPrefix(a, maskLen)
	return addr.New(p.Masked().Addr())
}

// hashValue computes H(G, M, C) as defined in spec §4.1 step 3.
func hashValue(group addr.Addr, hashMaskLen int, rpAddr addr.Addr) uint32 {
	g := uint64(fold32(maskTo(group, hashMaskLen)))
	c := uint64(fold32(rpAddr))

	inner := (hashA*g + hashB) % hashMod
	x := inner ^ c
	h := (hashA*x + hashB) % hashMod
	return uint32(h & hashMask)
}
