// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rp

import (
	"testing"

	"pim-sm.dev/pimd/internal/pim/addr"
)

func TestFindLongestPrefixWins(t *testing.T) {
	tbl := New(addr.V4)
	tbl.AddRP(Entry{
		RPAddr:      addr.MustParse("10.0.0.1"),
		GroupPrefix: addr.MustParsePrefix("224.0.0.0/4"),
		Priority:    0,
		HashMaskLen: 30,
		Learned:     LearnedStatic,
	})
	tbl.AddRP(Entry{
		RPAddr:      addr.MustParse("10.0.0.2"),
		GroupPrefix: addr.MustParsePrefix("239.1.0.0/16"),
		Priority:    0,
		HashMaskLen: 30,
		Learned:     LearnedStatic,
	})

	got, ok := tbl.Find(addr.MustParse("239.1.1.1"))
	if !ok || got.RPAddr.String() != "10.0.0.2" {
		t.Fatalf("expected longest-prefix RP 10.0.0.2, got %+v ok=%v", got, ok)
	}
}

func TestFindPriorityTiebreak(t *testing.T) {
	tbl := New(addr.V4)
	tbl.AddRP(Entry{RPAddr: addr.MustParse("10.0.0.1"), GroupPrefix: addr.MustParsePrefix("239.1.1.1/32"), Priority: 10, Learned: LearnedStatic})
	tbl.AddRP(Entry{RPAddr: addr.MustParse("10.0.0.2"), GroupPrefix: addr.MustParsePrefix("239.1.1.1/32"), Priority: 1, Learned: LearnedStatic})

	got, ok := tbl.Find(addr.MustParse("239.1.1.1"))
	if !ok || got.RPAddr.String() != "10.0.0.2" {
		t.Fatalf("expected priority winner 10.0.0.2 (lower value wins), got %+v", got)
	}
}

func TestFindDeterministic(t *testing.T) {
	// P5: rp_find is deterministic across repeated calls on the same set.
	tbl := New(addr.V4)
	tbl.AddRP(Entry{RPAddr: addr.MustParse("10.0.0.1"), GroupPrefix: addr.MustParsePrefix("239.0.0.0/8"), Priority: 1, HashMaskLen: 24, Learned: LearnedStatic})
	tbl.AddRP(Entry{RPAddr: addr.MustParse("10.0.0.2"), GroupPrefix: addr.MustParsePrefix("239.0.0.0/8"), Priority: 1, HashMaskLen: 24, Learned: LearnedStatic})

	group := addr.MustParse("239.5.5.5")
	first, _ := tbl.Find(group)
	for i := 0; i < 10; i++ {
		again, _ := tbl.Find(group)
		if again.RPAddr != first.RPAddr {
			t.Fatalf("rp_find not deterministic: %v then %v", first.RPAddr, again.RPAddr)
		}
	}
}

func TestFindNoMatchReturnsSentinel(t *testing.T) {
	tbl := New(addr.V4)
	got, ok := tbl.Find(addr.MustParse("239.9.9.9"))
	if ok {
		t.Fatal("expected no match")
	}
	if got != Sentinel {
		t.Fatalf("expected Sentinel, got %+v", got)
	}
}

func TestAddThenDeleteRPIsNoOp(t *testing.T) {
	// L1: add_rp(x); delete_rp(x) ≡ ∅ for externally visible state.
	tbl := New(addr.V4)
	e := Entry{RPAddr: addr.MustParse("10.0.0.1"), GroupPrefix: addr.MustParsePrefix("239.0.0.0/8"), Priority: 1, Learned: LearnedStatic}
	tbl.AddRP(e)
	tbl.DeleteRP(e.RPAddr, e.GroupPrefix)

	if len(tbl.Entries()) != 0 {
		t.Fatalf("expected empty RP table after add+delete, got %+v", tbl.Entries())
	}
	if _, ok := tbl.Find(addr.MustParse("239.1.1.1")); ok {
		t.Fatal("expected no RP to resolve after add+delete")
	}
}

func TestDeleteRPWithChildrenMovesToProcessing(t *testing.T) {
	// Scenario 5 support: an RP failover must not free state still referenced.
	tbl := New(addr.V4)
	e := Entry{RPAddr: addr.MustParse("10.0.0.1"), GroupPrefix: addr.MustParsePrefix("239.0.0.0/8"), Priority: 1, Learned: LearnedStatic}
	tbl.AddRP(e)
	tbl.ApplyChanges()

	live := tbl.Entries()[0]
	live.AddChild("SG:10.1.1.1,239.1.1.1")

	tbl.DeleteRP(e.RPAddr, e.GroupPrefix)
	if len(tbl.Entries()) != 0 {
		t.Fatal("expected the entry removed from the live list")
	}
	if len(tbl.Processing()) != 1 {
		t.Fatalf("expected the entry to move to processing, got %+v", tbl.Processing())
	}

	live.RemoveChild("SG:10.1.1.1,239.1.1.1")
	tbl.DrainProcessing()
	if len(tbl.Processing()) != 0 {
		t.Fatal("expected processing list to drain once children are gone")
	}
}

func TestApplyChangesReportsAffectedRPs(t *testing.T) {
	tbl := New(addr.V4)
	e := Entry{RPAddr: addr.MustParse("10.0.0.1"), GroupPrefix: addr.MustParsePrefix("239.0.0.0/8"), Priority: 1, Learned: LearnedStatic}
	affected := tbl.AddRP(e)
	if len(affected) != 1 || affected[0] != e.RPAddr {
		t.Fatalf("expected AddRP to report the affected RP, got %v", affected)
	}
	changed := tbl.ApplyChanges()
	if len(changed) != 1 || changed[0] != e.RPAddr {
		t.Fatalf("expected ApplyChanges to report %v, got %v", e.RPAddr, changed)
	}
	// Second call with no further changes reports nothing.
	if again := tbl.ApplyChanges(); len(again) != 0 {
		t.Fatalf("expected no further changes, got %v", again)
	}
}

func TestHashValueStableAcrossCalls(t *testing.T) {
	g := addr.MustParse("239.1.1.1")
	rp := addr.MustParse("10.0.0.1")
	h1 := hashValue(g, 30, rp)
	h2 := hashValue(g, 30, rp)
	if h1 != h2 {
		t.Fatalf("hash must be stable: %d vs %d", h1, h2)
	}
	if h1 >= 1<<31 {
		t.Fatalf("hash must fit in 31 bits, got %d", h1)
	}
}
