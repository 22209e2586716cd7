// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package addr

import "testing"

func TestMifSetBasics(t *testing.T) {
	var m MifSet
	if m.Any() {
		t.Fatal("zero value should be empty")
	}
	m.Set(3)
	m.Set(70)
	if !m.Test(3) || !m.Test(70) {
		t.Fatal("expected bits 3 and 70 set")
	}
	if m.Test(4) {
		t.Fatal("bit 4 should not be set")
	}
	if m.Count() != 2 {
		t.Fatalf("expected count 2, got %d", m.Count())
	}
	m.Reset(3)
	if m.Test(3) {
		t.Fatal("bit 3 should be cleared")
	}
}

func TestMifSetSetOps(t *testing.T) {
	a := MifSetOf(1, 2, 3)
	b := MifSetOf(2, 3, 4)

	u := a.Union(b)
	for _, v := range []int{1, 2, 3, 4} {
		if !u.Test(v) {
			t.Fatalf("union missing vif %d", v)
		}
	}

	i := a.Intersect(b)
	if i.Slice()[0] != 2 || i.Slice()[1] != 3 || len(i.Slice()) != 2 {
		t.Fatalf("unexpected intersection %v", i.Slice())
	}

	x := a.Xor(b)
	want := MifSetOf(1, 4)
	if !x.Equal(want) {
		t.Fatalf("xor mismatch: got %v want %v", x.Slice(), want.Slice())
	}
}

func TestMifSetNotAndEqual(t *testing.T) {
	olist := MifSetOf(1, 2)
	disabled := olist.Not()
	if disabled.Test(1) || disabled.Test(2) {
		t.Fatal("complement must clear set bits")
	}
	if !disabled.Test(5) {
		t.Fatal("complement must set bits outside the original set")
	}
	if !olist.Equal(MifSetOf(2, 1)) {
		t.Fatal("Equal must be order-independent (same bits)")
	}
}

func TestMifSetJoinsPrunesDisjointInvariant(t *testing.T) {
	// P1: joins ∩ prunes = ∅ per MRE per vif.
	joins := MifSetOf(1, 2, 3)
	prunes := MifSetOf(4, 5)
	if joins.Intersect(prunes).Any() {
		t.Fatal("joins and prunes must never overlap")
	}
}
