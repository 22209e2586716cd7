// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package vif

import (
	"testing"

	"pim-sm.dev/pimd/internal/pim/addr"
)

func TestNewAppliesDefaults(t *testing.T) {
	v := New(0, "eth0", addr.MustParse("10.0.0.1"))
	if v.HelloPeriod != DefaultHelloPeriod {
		t.Fatalf("expected default hello period, got %d", v.HelloPeriod)
	}
	if v.HoldtimeSeconds != DefaultHoldtime(DefaultHelloPeriod) {
		t.Fatalf("expected derived default holdtime, got %d", v.HoldtimeSeconds)
	}
	if !v.Active() {
		t.Fatal("expected a plain vif to be active")
	}
}

func TestRegisterVifIsNeverActive(t *testing.T) {
	v := NewRegisterVif(5, "pim-reg0", addr.MustParse("10.0.0.9"))
	if v.Active() {
		t.Fatal("expected PIM-Register vif to be excluded from Hello/olist activity")
	}
}

func TestManagerAddRejectsDuplicateIndex(t *testing.T) {
	m := NewManager()
	if err := m.Add(New(0, "eth0", addr.MustParse("10.0.0.1"))); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(New(0, "eth1", addr.MustParse("10.0.0.2"))); err == nil {
		t.Fatal("expected duplicate index to be rejected")
	}
}

func TestManagerAddRejectsDuplicateName(t *testing.T) {
	m := NewManager()
	if err := m.Add(New(0, "eth0", addr.MustParse("10.0.0.1"))); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(New(1, "eth0", addr.MustParse("10.0.0.2"))); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
}

func TestNextIndexSkipsReserved(t *testing.T) {
	m := NewManager()
	reg := NewRegisterVif(0, "pim-reg0", addr.MustParse("10.0.0.9"))
	if err := m.Add(reg); err != nil {
		t.Fatal(err)
	}
	idx := m.NextIndex()
	if idx != 1 {
		t.Fatalf("expected next free index 1, got %d", idx)
	}
}

func TestActiveSetExcludesDisabledAndRegister(t *testing.T) {
	m := NewManager()
	eth0 := New(0, "eth0", addr.MustParse("10.0.0.1"))
	eth1 := New(1, "eth1", addr.MustParse("10.0.0.2"))
	eth1.Flags.Disabled = true
	reg := NewRegisterVif(2, "pim-reg0", addr.MustParse("10.0.0.9"))
	for _, v := range []*Vif{eth0, eth1, reg} {
		if err := m.Add(v); err != nil {
			t.Fatal(err)
		}
	}

	set := m.ActiveSet()
	if !set.Test(0) || set.Test(1) || set.Test(2) {
		t.Fatalf("expected only vif 0 active, got %v", set.Slice())
	}
}

func TestAllReturnsIndexOrder(t *testing.T) {
	m := NewManager()
	m.Add(New(2, "eth2", addr.MustParse("10.0.0.3")))
	m.Add(New(0, "eth0", addr.MustParse("10.0.0.1")))
	m.Add(New(1, "eth1", addr.MustParse("10.0.0.2")))

	all := m.All()
	for i, v := range all {
		if v.Index != i {
			t.Fatalf("expected sorted index order, got %v", all)
		}
	}
}

func TestRegisterVifIndexLookup(t *testing.T) {
	m := NewManager()
	m.Add(New(0, "eth0", addr.MustParse("10.0.0.1")))
	m.Add(NewRegisterVif(1, "pim-reg0", addr.MustParse("10.0.0.9")))

	idx, ok := m.RegisterVifIndex()
	if !ok || idx != 1 {
		t.Fatalf("expected register vif index 1, got %d ok=%v", idx, ok)
	}
}
