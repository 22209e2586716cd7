// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package scope implements the administrative Scope-Zone table (spec
// §3.7, §4.2): answering "is address X scoped on interface I?" for BSM
// forwarding, Cand-RP advertisement, and Assert forwarding.
package scope

import "pim-sm.dev/pimd/internal/pim/addr"

// Zone is one configured administrative scope boundary.
type Zone struct {
	Prefix     addr.Prefix
	ScopedVifs addr.MifSet
}

// Table holds the configured scope zones for one PIM instance.
type Table struct {
	zones []Zone
}

// New creates an empty scope-zone table.
func New() *Table { return &Table{} }

// SetZones replaces the configured zone list wholesale (config reload).
func (t *Table) SetZones(zones []Zone) { t.zones = zones }

// Zones returns the configured zones.
func (t *Table) Zones() []Zone {
	out := make([]Zone, len(t.zones))
	copy(out, t.zones)
	return out
}

// IsScoped reports whether addr is administratively scoped on vifIndex:
// true iff some zone's prefix contains addr AND that zone boundary is
// configured on vifIndex.
func (t *Table) IsScoped(a addr.Addr, vifIndex int) bool {
	for _, z := range t.zones {
		if z.Prefix.Contains(a) && z.ScopedVifs.Test(vifIndex) {
			return true
		}
	}
	return false
}

// IsPrefixScoped reports whether any address within p is administratively
// scoped on vifIndex, i.e. whether p overlaps a zone whose boundary
// includes vifIndex. It does not check that p lies wholly inside the zone.
func (t *Table) IsPrefixScoped(p addr.Prefix, vifIndex int) bool {
	for _, z := range t.zones {
		if z.ScopedVifs.Test(vifIndex) && z.Prefix.Overlaps(p) {
			return true
		}
	}
	return false
}
