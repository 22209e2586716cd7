// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package vif

import (
	"testing"

	"pim-sm.dev/pimd/internal/pim/addr"
)

func TestSimMribReturnsInstalledRoute(t *testing.T) {
	m := NewSimMrib()
	rp := addr.MustParse("192.0.2.10")
	nextHop := addr.MustParse("192.0.2.2")
	m.SetRoute(rp, RPFRoute{NextHop: nextHop, IfIndex: 3})

	route, err := m.RPFLookup(rp)
	if err != nil {
		t.Fatalf("RPFLookup: %v", err)
	}
	if route.NextHop != nextHop || route.IfIndex != 3 {
		t.Fatalf("unexpected route: %+v", route)
	}
}

func TestSimMribErrorsOnUnknownDestination(t *testing.T) {
	m := NewSimMrib()
	if _, err := m.RPFLookup(addr.MustParse("192.0.2.10")); err == nil {
		t.Fatal("expected an error for an unrouted destination")
	}
}

var _ Mrib = (*SimMrib)(nil)
var _ Mrib = (*LinuxMrib)(nil)
