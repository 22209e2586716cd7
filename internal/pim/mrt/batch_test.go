// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import (
	"testing"
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

func TestBatchCommitAppliesJoinsAndPrunes(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := New(clk)
	io := newIO(clk, 1)
	g := addr.MustParse("239.1.1.1")
	wc, _ := store.Find(addr.Addr{}, g, FindFlags{WC: true, Create: true})

	b := NewJPBatch(2, 100*time.Second)
	b.StageJoin(wc.Key)
	b.Commit(store, io)

	if wc.DownstreamState(2) != DownJoin {
		t.Fatalf("expected batch commit to apply the staged join, got %v", wc.DownstreamState(2))
	}
}

func TestBatchSGRptPruneOverriddenBySGJoinBeforeCommit(t *testing.T) {
	// P2 regression guard: a same-message SG Join must cancel a staged
	// SG_RPT prune before it ever touches live state.
	clk := clock.NewFake(time.Unix(0, 0))
	store := New(clk)
	io := newIO(clk, 1)
	s := addr.MustParse("192.0.2.1")
	g := addr.MustParse("239.1.1.1")
	sgrpt, _ := store.Find(s, g, FindFlags{SGRpt: true, Create: true})

	b := NewJPBatch(2, 100*time.Second)
	b.StageSGRptPrune(sgrpt.Key)
	b.OverrideSGRptWithSGJoin(Key{Kind: KindSG, Source: s, Group: g})
	b.Commit(store, io)

	if sgrpt.DownstreamState(2) != DownNoInfo {
		t.Fatalf("expected overridden SG_RPT prune to never apply, got %v", sgrpt.DownstreamState(2))
	}
}

func TestBatchSGRptPruneAppliesWhenNotOverridden(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	store := New(clk)
	io := newIO(clk, 1)
	s := addr.MustParse("192.0.2.1")
	g := addr.MustParse("239.1.1.1")
	sgrpt, _ := store.Find(s, g, FindFlags{SGRpt: true, Create: true})
	sgrpt.iface(2).state = DownJoin

	b := NewJPBatch(2, 100*time.Second)
	b.StageSGRptPrune(sgrpt.Key)
	b.Commit(store, io)

	if sgrpt.DownstreamState(2) != DownPrunePendingTmp {
		t.Fatalf("expected staged SG_RPT prune to move Join->PrunePendingTmp, got %v", sgrpt.DownstreamState(2))
	}
}
