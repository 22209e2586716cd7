// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package nbr

import (
	"testing"
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

func u32(v uint32) *uint32 { return &v }

func TestReceiveHelloNewNeighbor(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	tbl := New(clk, 1, addr.MustParse("10.0.0.1"), 1, nil)

	kind := tbl.ReceiveHello(addr.MustParse("10.0.0.2"), HelloOptions{Holdtime: 105, GenID: u32(42)})
	if kind != ChangeNew {
		t.Fatalf("expected ChangeNew, got %v", kind)
	}
	if tbl.Count() != 1 {
		t.Fatalf("expected 1 neighbor, got %d", tbl.Count())
	}
}

func TestReceiveHelloTwiceIsPureRefresh(t *testing.T) {
	// L2: two identical Hellos in a row from the same neighbor must not
	// re-trigger new-neighbor or GenID-changed handling — only the
	// liveness timer is refreshed.
	clk := clock.NewFake(time.Unix(0, 0))
	tbl := New(clk, 1, addr.MustParse("10.0.0.1"), 1, nil)
	src := addr.MustParse("10.0.0.2")
	opts := HelloOptions{Holdtime: 105, GenID: u32(42)}

	first := tbl.ReceiveHello(src, opts)
	if first != ChangeNew {
		t.Fatalf("expected ChangeNew on first Hello, got %v", first)
	}
	second := tbl.ReceiveHello(src, opts)
	if second != ChangeRefresh {
		t.Fatalf("expected ChangeRefresh on identical second Hello, got %v", second)
	}
}

func TestReceiveHelloGenIDChangeDetected(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	tbl := New(clk, 1, addr.MustParse("10.0.0.1"), 1, nil)
	src := addr.MustParse("10.0.0.2")

	tbl.ReceiveHello(src, HelloOptions{Holdtime: 105, GenID: u32(42)})
	kind := tbl.ReceiveHello(src, HelloOptions{Holdtime: 105, GenID: u32(43)})
	if kind != ChangeGenID {
		t.Fatalf("expected ChangeGenID, got %v", kind)
	}
	e, _ := tbl.Get(src)
	if e.Generation != 1 {
		t.Fatalf("expected Generation bumped to 1, got %d", e.Generation)
	}
}

func TestHoldtimeZeroExpiresImmediately(t *testing.T) {
	// P6: Holdtime=0 means "forget me now" (graceful vif stop).
	clk := clock.NewFake(time.Unix(0, 0))
	var expired []addr.Addr
	tbl := New(clk, 1, addr.MustParse("10.0.0.1"), 1, func(e *Entry) {
		expired = append(expired, e.Addr)
	})
	src := addr.MustParse("10.0.0.2")
	tbl.ReceiveHello(src, HelloOptions{Holdtime: 105, GenID: u32(1)})
	if tbl.Count() != 1 {
		t.Fatal("expected neighbor present before holdtime-0 Hello")
	}

	tbl.ReceiveHello(src, HelloOptions{Holdtime: 0})
	if tbl.Count() != 0 {
		t.Fatal("expected neighbor removed on Holdtime=0")
	}
	// Holdtime=0 path removes directly; it is not an expiry callback.
	if len(expired) != 0 {
		t.Fatalf("expected no onExpire callback for explicit Holdtime=0, got %v", expired)
	}
}

func TestNeighborLivenessTimerExpiry(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	var expired []addr.Addr
	tbl := New(clk, 1, addr.MustParse("10.0.0.1"), 1, func(e *Entry) {
		expired = append(expired, e.Addr)
	})
	src := addr.MustParse("10.0.0.2")
	tbl.ReceiveHello(src, HelloOptions{Holdtime: 5, GenID: u32(1)})

	clk.Advance(4 * time.Second)
	if tbl.Count() != 1 {
		t.Fatal("neighbor expired too early")
	}
	clk.Advance(2 * time.Second)
	if tbl.Count() != 0 {
		t.Fatal("expected neighbor to expire after holdtime elapses")
	}
	if len(expired) != 1 || expired[0] != src {
		t.Fatalf("expected onExpire called with %v, got %v", src, expired)
	}
}

func TestElectDRHighestPriorityWins(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	local := addr.MustParse("10.0.0.1")
	tbl := New(clk, 1, local, 1, nil)
	tbl.ReceiveHello(addr.MustParse("10.0.0.2"), HelloOptions{Holdtime: 105, DRPriority: u32(5), GenID: u32(1)})
	tbl.ReceiveHello(addr.MustParse("10.0.0.3"), HelloOptions{Holdtime: 105, DRPriority: u32(2), GenID: u32(1)})

	winner, changed := tbl.ElectDR()
	if !changed {
		t.Fatal("expected DR change on first election")
	}
	if winner != addr.MustParse("10.0.0.2") {
		t.Fatalf("expected highest-priority neighbor to win, got %v", winner)
	}
}

func TestElectDRFallsBackToAddressWhenPriorityMissing(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	local := addr.MustParse("10.0.0.1")
	tbl := New(clk, 1, local, 9, nil)
	// Neighbor omits DR-priority entirely: priority must be ignored for
	// the whole election, tiebreak falls back to numerically largest address.
	tbl.ReceiveHello(addr.MustParse("10.0.0.5"), HelloOptions{Holdtime: 105, GenID: u32(1)})

	winner, _ := tbl.ElectDR()
	if winner != addr.MustParse("10.0.0.5") {
		t.Fatalf("expected address tiebreak to pick 10.0.0.5, got %v", winner)
	}
}

func TestElectDRNoChangeReportedWhenStable(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	local := addr.MustParse("10.0.0.1")
	tbl := New(clk, 1, local, 9, nil)
	tbl.ReceiveHello(addr.MustParse("10.0.0.2"), HelloOptions{Holdtime: 105, DRPriority: u32(1), GenID: u32(1)})

	tbl.ElectDR()
	_, changed := tbl.ElectDR()
	if changed {
		t.Fatal("expected no change on stable second election")
	}
}

func TestIAmDR(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	local := addr.MustParse("10.0.0.9")
	tbl := New(clk, 1, local, 200, nil)
	tbl.ReceiveHello(addr.MustParse("10.0.0.2"), HelloOptions{Holdtime: 105, DRPriority: u32(1), GenID: u32(1)})

	tbl.ElectDR()
	if !tbl.IAmDR() {
		t.Fatal("expected local router with highest priority to be DR")
	}
}
