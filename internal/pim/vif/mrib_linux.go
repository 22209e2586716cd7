// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package vif

import (
	"fmt"
	"net"
	"net/netip"
	"runtime"

	nl "github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"pim-sm.dev/pimd/internal/pim/addr"
)

// LinuxMrib resolves RPF routes against the real kernel unicast routing
// table via netlink, optionally inside a named network namespace (for a
// pimd instance bound to a VRF or a separate netns than the process's
// default one).
type LinuxMrib struct {
	namespace string
}

// NewLinuxMrib builds a LinuxMrib. namespace is empty to use the
// process's current network namespace.
func NewLinuxMrib(namespace string) *LinuxMrib {
	return &LinuxMrib{namespace: namespace}
}

// RPFLookup asks the kernel for its best route to dst via netlink.RouteGet
// and resolves the route's egress link to an OS interface index.
func (m *LinuxMrib) RPFLookup(dst addr.Addr) (route RPFRoute, err error) {
	runErr := m.runInNamespace(func() error {
		ip := net.IP(dst.AsSlice())
		routes, rErr := nl.RouteGet(ip)
		if rErr != nil {
			return fmt.Errorf("route lookup for %s: %w", dst, rErr)
		}
		if len(routes) == 0 {
			return fmt.Errorf("no route to %s", dst)
		}
		r := routes[0]

		nextHop := dst
		if r.Gw != nil {
			if a, ok := netipFromIP(r.Gw); ok {
				nextHop = a
			}
		}
		route = RPFRoute{NextHop: nextHop, IfIndex: r.LinkIndex}
		return nil
	})
	return route, runErr
}

// Close is a no-op: netlink.RouteGet opens and closes its own socket per
// call, there is no persistent handle to release.
func (m *LinuxMrib) Close() error { return nil }

// runInNamespace executes fn in m.namespace if one is configured, the
// same lock-thread / setns / restore dance any netns-aware lookup needs
// to make on Linux, and runs fn directly against the current namespace
// otherwise.
func (m *LinuxMrib) runInNamespace(fn func() error) error {
	if m.namespace == "" {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origNS, err := netns.Get()
	if err != nil {
		return fmt.Errorf("get current netns: %w", err)
	}
	defer origNS.Close()

	targetNS, err := netns.GetFromName(m.namespace)
	if err != nil {
		return fmt.Errorf("get target netns %q: %w", m.namespace, err)
	}
	defer targetNS.Close()

	if err := netns.Set(targetNS); err != nil {
		return fmt.Errorf("setns to %q: %w", m.namespace, err)
	}
	defer netns.Set(origNS)

	return fn()
}

func netipFromIP(ip net.IP) (addr.Addr, bool) {
	if v4 := ip.To4(); v4 != nil {
		var a [4]byte
		copy(a[:], v4)
		return addr.New(netip.AddrFrom4(a)), true
	}
	if v6 := ip.To16(); v6 != nil {
		var a [16]byte
		copy(a[:], v6)
		return addr.New(netip.AddrFrom16(a)), true
	}
	return addr.Addr{}, false
}
