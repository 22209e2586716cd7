// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scope

import (
	"testing"

	"pim-sm.dev/pimd/internal/pim/addr"
)

func TestIsScoped(t *testing.T) {
	tbl := New()
	tbl.SetZones([]Zone{
		{Prefix: addr.MustParsePrefix("239.0.0.0/8"), ScopedVifs: addr.MifSetOf(1)},
	})

	if !tbl.IsScoped(addr.MustParse("239.1.2.3"), 1) {
		t.Fatal("expected group to be scoped on vif 1")
	}
	if tbl.IsScoped(addr.MustParse("239.1.2.3"), 2) {
		t.Fatal("vif 2 is not a boundary for this zone")
	}
	if tbl.IsScoped(addr.MustParse("224.1.2.3"), 1) {
		t.Fatal("group outside the zone prefix must not be scoped")
	}
}

func TestScenario6BSMForwardingBoundary(t *testing.T) {
	// Scenario 6: zone 239.0.0.0/8 scoped on vif-1. A BSM for 239.1.0.0/16
	// must not cross vif-1.
	tbl := New()
	tbl.SetZones([]Zone{
		{Prefix: addr.MustParsePrefix("239.0.0.0/8"), ScopedVifs: addr.MifSetOf(1)},
	})
	bsmPrefix := addr.MustParsePrefix("239.1.0.0/16")
	if !tbl.IsPrefixScoped(bsmPrefix, 1) {
		t.Fatal("expected BSM group-prefix to be boundary-scoped on vif-1")
	}
	if tbl.IsPrefixScoped(bsmPrefix, 2) {
		t.Fatal("vif-2 is not a scope boundary; BSM must be forwarded there")
	}
}
