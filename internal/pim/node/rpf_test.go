// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package node

import (
	"testing"
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/config"
	"pim-sm.dev/pimd/internal/pim/addr"
	"pim-sm.dev/pimd/internal/pim/kernelmfc"
	"pim-sm.dev/pimd/internal/pim/mrt"
	"pim-sm.dev/pimd/internal/pim/rp"
	"pim-sm.dev/pimd/internal/pim/transport"
	"pim-sm.dev/pimd/internal/pim/vif"
	"pim-sm.dev/pimd/internal/pim/wire"
)

func testNodeWithMrib(t *testing.T) (*Node, *kernelmfc.SimProvider, *vif.SimMrib) {
	t.Helper()
	conn := transport.NewSimConn()
	kern := kernelmfc.NewSimProvider()
	mrib := vif.NewSimMrib()
	clk := clock.NewFake(time.Unix(0, 0))
	n := New(Config{
		Family:  addr.V4,
		Clock:   clk,
		Conn:    conn,
		Kernel:  kern,
		Mrib:    mrib,
		LocalID: addr.MustParse("192.0.2.1"),
	})
	cfg := &config.Config{
		Vifs: []config.VifConfig{
			{Name: "eth0", Index: 1, PrimaryAddr: addr.MustParse("192.0.2.1"), DRPriority: 1, OverrideIntervalMS: 2500},
		},
	}
	if err := n.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return n, kern, mrib
}

func TestRecomputeRPFSetsRPFFieldsFromMrib(t *testing.T) {
	n, _, mrib := testNodeWithMrib(t)

	group := addr.MustParse("239.1.1.1")
	rpAddr := addr.MustParse("192.0.2.10")
	nextHop := addr.MustParse("192.0.2.2")
	mrib.SetRoute(rpAddr, vif.RPFRoute{NextHop: nextHop, IfIndex: 1})
	n.rps.AddRP(rp.Entry{RPAddr: rpAddr, GroupPrefix: addr.NewPrefix(group, 32), Priority: 1, Learned: rp.LearnedStatic})

	e, _ := n.mre.Find(addr.Addr{}, group, mrt.FindFlags{WC: true, Create: true})
	n.recomputeRPF(e)

	if e.RPFNbrRP != nextHop {
		t.Fatalf("expected RPFNbrRP %s, got %s", nextHop, e.RPFNbrRP)
	}
	if e.RPFInterfaceRP != 1 {
		t.Fatalf("expected RPFInterfaceRP 1, got %d", e.RPFInterfaceRP)
	}
}

func TestRecomputeRPFProjectsMFCForSGEntry(t *testing.T) {
	n, kern, mrib := testNodeWithMrib(t)

	source := addr.MustParse("198.51.100.5")
	group := addr.MustParse("239.1.1.1")
	rpAddr := addr.MustParse("192.0.2.10")
	mrib.SetRoute(rpAddr, vif.RPFRoute{NextHop: addr.MustParse("192.0.2.2"), IfIndex: 1})
	mrib.SetRoute(source, vif.RPFRoute{NextHop: addr.MustParse("192.0.2.3"), IfIndex: 2})
	n.rps.AddRP(rp.Entry{RPAddr: rpAddr, GroupPrefix: addr.NewPrefix(group, 32), Priority: 1, Learned: rp.LearnedStatic})

	v, ok := n.vifs.Get(1)
	if !ok {
		t.Fatal("expected vif 1 registered")
	}
	n.handleJoinPrune(v, addr.MustParse("192.0.2.2"), wire.JoinPrune{
		HoldtimeSeconds: 210,
		Groups: []wire.JPGroup{{
			Group: addr.NewPrefix(group, 32),
			Joined: []wire.JPSource{
				{Addr: source, MaskLen: 32},
			},
		}},
	})

	e, _ := n.mre.Find(source, group, mrt.FindFlags{SG: true, Create: true})
	e.SPTbit = true

	n.recomputeRPF(e)

	if e.RPFInterfaceS != 2 {
		t.Fatalf("expected RPFInterfaceS 2, got %d", e.RPFInterfaceS)
	}
	if kern.MFCCount() == 0 {
		t.Fatal("expected an MFC entry to be installed in the kernel provider")
	}
}

func TestRecomputeRPFSkipsWhenMribUnset(t *testing.T) {
	conn := transport.NewSimConn()
	kern := kernelmfc.NewSimProvider()
	clk := clock.NewFake(time.Unix(0, 0))
	n := New(Config{
		Family:  addr.V4,
		Clock:   clk,
		Conn:    conn,
		Kernel:  kern,
		LocalID: addr.MustParse("192.0.2.1"),
	})

	group := addr.MustParse("239.1.1.1")
	e, _ := n.mre.Find(addr.Addr{}, group, mrt.FindFlags{WC: true, Create: true})
	n.recomputeRPF(e)

	if e.RPFInterfaceRP != addr.VifIndexInvalid {
		t.Fatalf("expected RPFInterfaceRP to stay unset, got %d", e.RPFInterfaceRP)
	}
}
