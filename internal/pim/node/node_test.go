// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package node

import (
	"context"
	"testing"
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/config"
	"pim-sm.dev/pimd/internal/pim/addr"
	"pim-sm.dev/pimd/internal/pim/kernelmfc"
	"pim-sm.dev/pimd/internal/pim/transport"
	"pim-sm.dev/pimd/internal/pim/wire"
)

func testNode(t *testing.T) (*Node, *transport.SimConn, *kernelmfc.SimProvider) {
	t.Helper()
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
	cfg := &config.Config{
		Vifs: []config.VifConfig{
			{Name: "eth0", Index: 1, PrimaryAddr: addr.MustParse("192.0.2.1"), DRPriority: 1, OverrideIntervalMS: 2500},
		},
	}
	if err := n.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return n, conn, kern
}

func TestConfigureRegistersVifAndJoinsGroup(t *testing.T) {
	n, conn, kern := testNode(t)

	if _, ok := n.vifs.Get(1); !ok {
		t.Fatal("expected vif 1 registered")
	}
	if _, ok := n.nbrs[1]; !ok {
		t.Fatal("expected a neighbor table created for vif 1")
	}
	if groups := conn.JoinedGroups(); len(groups) != 1 || groups[0] != 1 {
		t.Fatalf("expected vif 1 to join ALL-PIM-ROUTERS, got %v", groups)
	}
	if kern.VifCount() != 1 {
		t.Fatalf("expected 1 vif registered with the kernel provider, got %d", kern.VifCount())
	}
}

func TestRunProcessesHelloAndElectsDR(t *testing.T) {
	n, conn, _ := testNode(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	prio := uint32(200)
	gen := uint32(42)
	hello := wire.EncodeHello(wire.Hello{DRPriority: &prio, GenID: &gen})
	conn.Inject(transport.Packet{
		Src:     addr.MustParse("192.0.2.2"),
		Dst:     addr.MustParse("224.0.0.13"),
		IfIndex: 1,
		Data:    hello,
	})

	deadline := time.After(2 * time.Second)
	for {
		if e, ok := n.nbrs[1].Get(addr.MustParse("192.0.2.2")); ok && e != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for neighbor to register")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRunReturnsErrorWhenConnClosed(t *testing.T) {
	n, conn, _ := testNode(t)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	conn.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Run to return an error once the connection closes")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to exit")
	}
}

func TestStatusReflectsRunningState(t *testing.T) {
	n, _, _ := testNode(t)

	if n.Status().Running {
		t.Fatal("expected Running false before Run is called")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for !n.Status().Running {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for Running true")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done

	if n.Status().Running {
		t.Fatal("expected Running false after Run returns")
	}
}
