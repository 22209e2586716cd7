// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package vif

import "pim-sm.dev/pimd/internal/pim/addr"

// RPFRoute is the result of an MRIB lookup for one destination: the
// next-hop neighbor and the vif the kernel's unicast route table says
// reaches it, used to populate an Entry's RPFNbrS/RPFNbrRP and
// RPFInterfaceS/RPFInterfaceRP fields (spec §3.4, §4.6).
type RPFRoute struct {
	NextHop addr.Addr
	IfIndex int // OS network interface index, used directly as the vif index
}

// Mrib is the Multicast RIB collaborator: a unicast-route lookup plus a
// link up/down watch, kept behind an interface so node can be built
// against either the real kernel (LinuxMrib) or a scripted stand-in in
// tests, the same provider-pair shape kernelmfc.Provider and
// transport.Conn use for other kernel-privileged facilities.
type Mrib interface {
	// RPFLookup resolves the best unicast route to dst, the RPF check
	// every (*,G)/(S,G) entry needs against both the RP's address and
	// the source's address (spec §4.1).
	RPFLookup(dst addr.Addr) (RPFRoute, error)

	// Close releases any resources the lookup mechanism holds open
	// (netlink sockets, namespace handles).
	Close() error
}
