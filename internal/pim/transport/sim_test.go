// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"testing"

	"pim-sm.dev/pimd/internal/pim/addr"
)

func TestSimConnReadFromBlocksUntilInject(t *testing.T) {
	c := NewSimConn()
	done := make(chan Packet, 1)
	go func() {
		buf := make([]byte, 1500)
		pkt, err := c.ReadFrom(buf)
		if err != nil {
			t.Error(err)
			return
		}
		done <- pkt
	}()

	c.Inject(Packet{Src: addr.MustParse("192.0.2.1"), Data: []byte{1, 2, 3}})
	pkt := <-done
	if len(pkt.Data) != 3 || pkt.Data[0] != 1 {
		t.Fatalf("unexpected packet data: %v", pkt.Data)
	}
}

func TestSimConnWriteToRecordsSentPackets(t *testing.T) {
	c := NewSimConn()
	dst := addr.MustParse("224.0.0.13")
	if err := c.WriteTo([]byte{0xde, 0xad}, dst, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := c.Sent()
	if len(sent) != 1 || sent[0].IfIndex != 2 || sent[0].Dst != dst {
		t.Fatalf("unexpected sent record: %+v", sent)
	}
}

func TestSimConnJoinLeaveGroup(t *testing.T) {
	c := NewSimConn()
	c.JoinGroup(1)
	c.JoinGroup(2)
	if len(c.JoinedGroups()) != 2 {
		t.Fatalf("expected 2 joined groups, got %v", c.JoinedGroups())
	}
	c.LeaveGroup(1)
	if len(c.JoinedGroups()) != 1 {
		t.Fatalf("expected 1 joined group after leave, got %v", c.JoinedGroups())
	}
}

func TestSimConnCloseUnblocksReaders(t *testing.T) {
	c := NewSimConn()
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 1500)
		_, err := c.ReadFrom(buf)
		errCh <- err
	}()
	c.Close()
	if err := <-errCh; err == nil {
		t.Fatal("expected ReadFrom to return an error once closed")
	}
}

func TestSimConnWriteToFailsAfterClose(t *testing.T) {
	c := NewSimConn()
	c.Close()
	if err := c.WriteTo([]byte{1}, addr.MustParse("224.0.0.13"), 1); err == nil {
		t.Fatal("expected WriteTo to fail on a closed SimConn")
	}
}
