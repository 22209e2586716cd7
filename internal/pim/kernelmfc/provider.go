// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package kernelmfc abstracts the kernel's multicast forwarding cache so
// the protocol engine issues the same vif/MFC operations whether it is
// talking to a real Linux MRT socket or an in-memory stand-in used by
// tests and --sim mode (spec §6.2).
package kernelmfc

import (
	"pim-sm.dev/pimd/internal/pim/addr"
)

// VifParams describes one kernel vif registration (spec §3.2 / §6.2).
type VifParams struct {
	VifIndex   int
	Flags      VifFlags
	Threshold  uint8
	LocalAddr  addr.Addr
	RemoteAddr addr.Addr // used only for VIFF_TUNNEL vifs
	IfIndex    int       // OS network interface index, resolved by the caller
}

// VifFlags mirrors the kernel's vifc_flags / mif6c_flags bits relevant to
// pimd: VIFF_REGISTER marks the PIM Register encapsulation vif.
type VifFlags uint8

const (
	VifFlagTunnel VifFlags = 1 << iota
	VifFlagRegister
)

// MFCParams describes one (S,G) forwarding cache entry (spec §4.9's
// projected Tuple, translated to kernel wire shape).
type MFCParams struct {
	Source addr.Addr
	Group  addr.Addr
	IifVif int
	Olist  addr.MifSet
	TTLs   [addr.MaxVifs]uint8 // per-vif forwarding threshold, 0 = not a member
}

// DataflowStats reports the byte/packet counters the kernel has observed
// for one MFC entry since it was installed, used by the mfc package's
// dataflow monitors when native mfcc_* counting is unavailable.
type DataflowStats struct {
	Packets uint64
	Bytes   uint64
}

// Provider is the kernel/MFEA collaborator interface (spec §6.2): every
// operation the protocol engine needs to program multicast forwarding,
// implemented once for Linux and once for simulation.
type Provider interface {
	AddVif(p VifParams) error
	DelVif(vifIndex int) error

	AddMFC(p MFCParams) error
	DelMFC(source, group addr.Addr) error

	// Stats returns the kernel's observed counters for an installed MFC
	// entry, used to drive dataflow monitors on providers that lack
	// native mfcc_* upcall support.
	Stats(source, group addr.Addr) (DataflowStats, error)

	Close() error
}
