// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bsr

// Reassembler accumulates Bootstrap message fragments keyed by
// (zone scope prefix, fragment_tag) until the caller determines the last
// fragment of a BSM has arrived (spec §4.8: "fragment reassembly is keyed
// by (zone_id, fragment_tag)").
//
// PIM's wire format does not carry a fragment index or a last-fragment
// bit; a BSR splits group-prefix blocks across multiple messages sharing
// one fragment_tag and relies on the receiver to merge every group-prefix
// block it sees for that tag before treating the zone's RP-set as
// complete. Reassembler exposes that merge primitive directly rather than
// trying to infer completeness, matching how pim_bsr.cc drives it from
// the caller's own BSR Timer.
type Reassembler struct {
	tag     uint16
	hasTag  bool
	bsrAddr Bsm
}

// reset drops any in-progress fragment state, called when a new
// fragment_tag begins.
func (r *Reassembler) reset(b Bsm) {
	r.tag = b.FragmentTag
	r.hasTag = true
	r.bsrAddr = Bsm{BSRAddr: b.BSRAddr, BSRPriority: b.BSRPriority, HashMaskLen: b.HashMaskLen, FragmentTag: b.FragmentTag}
}

// Merge folds fragment b into the in-progress reassembly, starting a new
// one if the fragment_tag differs from what's in progress. An RP already
// present under the same group prefix is not added again. It returns the
// merged BSM accumulated so far.
func (r *Reassembler) Merge(b Bsm) Bsm {
	if !r.hasTag || r.tag != b.FragmentTag || r.bsrAddr.BSRAddr != b.BSRAddr {
		r.reset(b)
	}
	for _, gp := range b.GroupPrefixes {
		merged := false
		for i := range r.bsrAddr.GroupPrefixes {
			if r.bsrAddr.GroupPrefixes[i].Prefix == gp.Prefix {
				for _, rp := range gp.Rps {
					dup := false
					for _, have := range r.bsrAddr.GroupPrefixes[i].Rps {
						if have.Addr == rp.Addr {
							dup = true
							break
						}
					}
					if !dup {
						r.bsrAddr.GroupPrefixes[i].Rps = append(r.bsrAddr.GroupPrefixes[i].Rps, rp)
					}
				}
				merged = true
				break
			}
		}
		if !merged {
			r.bsrAddr.GroupPrefixes = append(r.bsrAddr.GroupPrefixes, gp)
		}
	}
	return r.bsrAddr
}
