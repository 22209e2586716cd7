// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import (
	"testing"
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

func TestAssertWinnerOnWrongInterfaceData(t *testing.T) {
	// Scenario 2: data arrives on the wrong interface while it's in the
	// oif set; the local router becomes IAmWinner and asserts.
	clk := clock.NewFake(time.Unix(0, 0))
	e := newEntry(Key{Kind: KindSG, Source: addr.MustParse("192.0.2.1"), Group: addr.MustParse("239.1.1.1")})
	asserts := 0
	io := assertIO{clock: clk, sendAssert: func(int, AssertMetric) { asserts++ }}
	myMetric := AssertMetric{Preference: 0, Metric: 0, Addr: addr.MustParse("10.0.0.1")}

	e.DataArrivedWrongInterface(io, 3, myMetric)
	if e.AssertStateOf(3) != AssertIAmWinner {
		t.Fatalf("expected IAmWinner, got %v", e.AssertStateOf(3))
	}
	if asserts != 1 {
		t.Fatalf("expected one Assert sent, got %d", asserts)
	}
}

func TestReceiveBetterAssertBecomesLoser(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	e := newEntry(Key{Kind: KindSG, Source: addr.MustParse("192.0.2.1"), Group: addr.MustParse("239.1.1.1")})
	io := assertIO{clock: clk, sendAssert: func(int, AssertMetric) {}}
	myMetric := AssertMetric{Preference: 10, Metric: 10, Addr: addr.MustParse("10.0.0.1")}
	theirMetric := AssertMetric{Preference: 1, Metric: 1, Addr: addr.MustParse("10.0.0.2")}

	e.ReceiveAssert(io, 3, myMetric, theirMetric)
	if e.AssertStateOf(3) != AssertIAmLoser {
		t.Fatalf("expected IAmLoser on better metric, got %v", e.AssertStateOf(3))
	}
}

func TestAssertTimerExpiryReturnsToNoInfo(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	e := newEntry(Key{Kind: KindSG, Source: addr.MustParse("192.0.2.1"), Group: addr.MustParse("239.1.1.1")})
	io := assertIO{clock: clk, sendAssert: func(int, AssertMetric) {}}
	myMetric := AssertMetric{Preference: 10, Metric: 10, Addr: addr.MustParse("10.0.0.1")}
	theirMetric := AssertMetric{Preference: 1, Metric: 1, Addr: addr.MustParse("10.0.0.2")}

	e.ReceiveAssert(io, 3, myMetric, theirMetric)
	clk.Advance(DefaultAssertTime - DefaultAssertOverrideInterval + time.Second)
	if e.AssertStateOf(3) != AssertNoInfo {
		t.Fatalf("expected Assert Timer expiry to revert to NoInfo, got %v", e.AssertStateOf(3))
	}
}

func TestWinnerDefendsAgainstWorseAssert(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	e := newEntry(Key{Kind: KindSG, Source: addr.MustParse("192.0.2.1"), Group: addr.MustParse("239.1.1.1")})
	asserts := 0
	io := assertIO{clock: clk, sendAssert: func(int, AssertMetric) { asserts++ }}
	myMetric := AssertMetric{Preference: 1, Metric: 1, Addr: addr.MustParse("10.0.0.1")}
	worse := AssertMetric{Preference: 10, Metric: 10, Addr: addr.MustParse("10.0.0.2")}

	e.DataArrivedWrongInterface(io, 3, myMetric)
	asserts = 0
	e.ReceiveAssert(io, 3, myMetric, worse)
	if e.AssertStateOf(3) != AssertIAmWinner {
		t.Fatal("expected to remain IAmWinner against a worse metric")
	}
	if asserts != 1 {
		t.Fatalf("expected winner to re-assert in defense, got %d", asserts)
	}
}
