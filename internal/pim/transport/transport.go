// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package transport owns the raw PIM socket I/O (spec §6.1): one IP
// protocol-103 socket per address family, joined to the ALL-PIM-ROUTERS
// group on every active vif, read by the node's single event loop.
package transport

import (
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// ProtoPIM is the IP protocol number for PIM (RFC 4601 §4.9).
const ProtoPIM = 103

// Packet is one datagram read off the raw socket, demultiplexed to the
// vif it arrived on by source/interface lookup.
type Packet struct {
	Src     addr.Addr
	Dst     addr.Addr
	IfIndex int
	Data    []byte
}

// Conn is the raw PIM socket abstraction the node event loop selects on.
// One Conn exists per address family for the lifetime of the daemon.
type Conn interface {
	// ReadFrom blocks until a PIM datagram arrives, returning it
	// demultiplexed to its receiving interface.
	ReadFrom(buf []byte) (Packet, error)

	// WriteTo unicasts or multicasts data to dst out ifIndex.
	WriteTo(data []byte, dst addr.Addr, ifIndex int) error

	// JoinGroup and LeaveGroup manage ALL-PIM-ROUTERS membership as vifs
	// come up and down.
	JoinGroup(ifIndex int) error
	LeaveGroup(ifIndex int) error

	// FD exposes the underlying socket descriptor for kernelmfc's
	// MRT_INIT/MRT_ADD_VIF/MRT_ADD_MFC setsockopt calls, which must be
	// issued against this same socket per spec §6.2.
	FD() (uintptr, error)

	Close() error
}

// allPIMRoutersV4 and allPIMRoutersV6 are the well-known PIM multicast
// groups (RFC 4601 §4.9 / RFC 5135).
var (
	allPIMRoutersV4 = netip.MustParseAddr("224.0.0.13")
	allPIMRoutersV6 = netip.MustParseAddr("ff02::d")
)

// rawConn implements Conn over golang.org/x/net's ipv4/ipv6 PacketConn,
// the same library the rest of the pack reaches for when it needs
// interface-level control over IP sockets.
type rawConn struct {
	family addr.Family
	pc     net.PacketConn
	v4     *ipv4.PacketConn
	v6     *ipv6.PacketConn
}

// Dial opens the raw PIM socket for family and enables per-packet control
// messages (IfIndex) so ReadFrom can demultiplex to the receiving vif.
func Dial(family addr.Family) (Conn, error) {
	network := "ip4:103"
	if family == addr.V6 {
		network = "ip6:103"
	}
	pc, err := net.ListenPacket(network, "")
	if err != nil {
		return nil, pimerr.Errorf(pimerr.KindResource, "transport: open raw PIM socket: %w", err)
	}

	rc := &rawConn{family: family, pc: pc}
	if family == addr.V6 {
		rc.v6 = ipv6.NewPacketConn(pc)
		if err := rc.v6.SetControlMessage(ipv6.FlagInterface|ipv6.FlagSrc|ipv6.FlagDst, true); err != nil {
			pc.Close()
			return nil, pimerr.Errorf(pimerr.KindResource, "transport: set v6 control flags: %w", err)
		}
	} else {
		rc.v4 = ipv4.NewPacketConn(pc)
		if err := rc.v4.SetControlMessage(ipv4.FlagInterface|ipv4.FlagSrc|ipv4.FlagDst, true); err != nil {
			pc.Close()
			return nil, pimerr.Errorf(pimerr.KindResource, "transport: set v4 control flags: %w", err)
		}
	}
	return rc, nil
}

func (c *rawConn) ReadFrom(buf []byte) (Packet, error) {
	if c.family == addr.V6 {
		n, cm, src, err := c.v6.ReadFrom(buf)
		if err != nil {
			return Packet{}, err
		}
		pkt := Packet{Data: buf[:n]}
		if a, ok := netip.AddrFromSlice(udpIP(src)); ok {
			pkt.Src = addr.New(a.Unmap())
		}
		if cm != nil {
			pkt.IfIndex = cm.IfIndex
			if a, ok := netip.AddrFromSlice(cm.Dst); ok {
				pkt.Dst = addr.New(a.Unmap())
			}
		}
		return pkt, nil
	}

	n, cm, src, err := c.v4.ReadFrom(buf)
	if err != nil {
		return Packet{}, err
	}
	pkt := Packet{Data: buf[:n]}
	if a, ok := netip.AddrFromSlice(udpIP(src)); ok {
		pkt.Src = addr.New(a.Unmap())
	}
	if cm != nil {
		pkt.IfIndex = cm.IfIndex
		if a, ok := netip.AddrFromSlice(cm.Dst); ok {
			pkt.Dst = addr.New(a.Unmap())
		}
	}
	return pkt, nil
}

func udpIP(a net.Addr) []byte {
	switch v := a.(type) {
	case *net.IPAddr:
		return v.IP
	default:
		return nil
	}
}

func (c *rawConn) WriteTo(data []byte, dst addr.Addr, ifIndex int) error {
	ipAddr := &net.IPAddr{IP: net.IP(dst.AsSlice())}
	if c.family == addr.V6 {
		cm := &ipv6.ControlMessage{IfIndex: ifIndex}
		_, err := c.v6.WriteTo(data, cm, ipAddr)
		return err
	}
	cm := &ipv4.ControlMessage{IfIndex: ifIndex}
	_, err := c.v4.WriteTo(data, cm, ipAddr)
	return err
}

func (c *rawConn) JoinGroup(ifIndex int) error {
	iface := &net.Interface{Index: ifIndex}
	if c.family == addr.V6 {
		return c.v6.JoinGroup(iface, &net.IPAddr{IP: net.IP(allPIMRoutersV6.AsSlice())})
	}
	return c.v4.JoinGroup(iface, &net.IPAddr{IP: net.IP(allPIMRoutersV4.AsSlice())})
}

func (c *rawConn) LeaveGroup(ifIndex int) error {
	iface := &net.Interface{Index: ifIndex}
	if c.family == addr.V6 {
		return c.v6.LeaveGroup(iface, &net.IPAddr{IP: net.IP(allPIMRoutersV6.AsSlice())})
	}
	return c.v4.LeaveGroup(iface, &net.IPAddr{IP: net.IP(allPIMRoutersV4.AsSlice())})
}

// FD exposes the raw socket descriptor so kernelmfc can issue
// MRT_INIT/MRT_ADD_VIF/MRT_ADD_MFC setsockopt calls against the exact
// socket this Conn is reading and writing on.
func (c *rawConn) FD() (uintptr, error) {
	sc, ok := c.pc.(syscall.Conn)
	if !ok {
		return 0, pimerr.New(pimerr.KindResource, "transport: underlying PacketConn is not a syscall.Conn")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, pimerr.Errorf(pimerr.KindResource, "transport: SyscallConn: %w", err)
	}
	var fd uintptr
	ctrlErr := raw.Control(func(s uintptr) { fd = s })
	if ctrlErr != nil {
		return 0, pimerr.Errorf(pimerr.KindResource, "transport: raw Control: %w", ctrlErr)
	}
	return fd, nil
}

func (c *rawConn) Close() error { return c.pc.Close() }
