// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"io"
	"sync"

	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// SimConn is an in-memory Conn used by tests and pimd's --sim mode: no
// real socket, packets are delivered via Inject and captured via Sent.
type SimConn struct {
	mu      sync.Mutex
	inbox   []Packet
	waiters []chan struct{}
	sent    []SentPacket
	groups  map[int]bool
	closed  bool
}

// SentPacket records one WriteTo call for test assertions.
type SentPacket struct {
	Data    []byte
	Dst     addr.Addr
	IfIndex int
}

// NewSimConn creates an empty simulated PIM socket.
func NewSimConn() *SimConn {
	return &SimConn{groups: make(map[int]bool)}
}

// Inject makes pkt available to the next ReadFrom call.
func (c *SimConn) Inject(pkt Packet) {
	c.mu.Lock()
	c.inbox = append(c.inbox, pkt)
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

func (c *SimConn) ReadFrom(buf []byte) (Packet, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return Packet{}, io.EOF
		}
		if len(c.inbox) > 0 {
			pkt := c.inbox[0]
			c.inbox = c.inbox[1:]
			c.mu.Unlock()
			n := copy(buf, pkt.Data)
			pkt.Data = buf[:n]
			return pkt, nil
		}
		wait := make(chan struct{})
		c.waiters = append(c.waiters, wait)
		c.mu.Unlock()
		<-wait
	}
}

func (c *SimConn) WriteTo(data []byte, dst addr.Addr, ifIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pimerr.New(pimerr.KindResource, "transport: write on closed SimConn")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sent = append(c.sent, SentPacket{Data: cp, Dst: dst, IfIndex: ifIndex})
	return nil
}

func (c *SimConn) JoinGroup(ifIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[ifIndex] = true
	return nil
}

func (c *SimConn) LeaveGroup(ifIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.groups, ifIndex)
	return nil
}

func (c *SimConn) FD() (uintptr, error) {
	return 0, pimerr.New(pimerr.KindResource, "transport: SimConn has no underlying fd")
}

func (c *SimConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	waiters := c.waiters
	c.waiters = nil
	for _, w := range waiters {
		close(w)
	}
	return nil
}

// Sent returns every packet written so far, for test assertions.
func (c *SimConn) Sent() []SentPacket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentPacket, len(c.sent))
	copy(out, c.sent)
	return out
}

// JoinedGroups reports which vif indexes currently have ALL-PIM-ROUTERS
// membership, for test assertions.
func (c *SimConn) JoinedGroups() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.groups))
	for vif := range c.groups {
		out = append(out, vif)
	}
	return out
}
