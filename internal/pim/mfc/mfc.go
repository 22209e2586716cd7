// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package mfc implements the MFC projection layer: turning an (S,G)'s
// MRE state into the (iif, olist) tuple written to the kernel, and the
// idle/SPT-switch dataflow monitors that drive keepalive expiry and SPT
// switchover (spec §3.5, §4.9, component G).
package mfc

import (
	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// SGState is the subset of (S,G) MRE state the projection needs, kept
// decoupled from the mrt package so mfc has no import-cycle dependency
// on the task engine.
type SGState struct {
	SPTbit                  bool
	SourceDirectlyConnected bool
	RPFInterfaceS           int
	RPFInterfaceRP          int
	InheritedOlistSG        addr.MifSet
	InheritedOlistSGRpt     addr.MifSet
	SwitchToSPTDesired      bool
}

// Tuple is the projected kernel-facing MFC state for one (S,G).
type Tuple struct {
	Source addr.Addr
	Group  addr.Addr

	IifVifIndex          int
	Olist                addr.MifSet
	OlistDisableWrongvif addr.MifSet
}

// Project computes the (iif, olist) tuple per spec §4.9.
func Project(source, group addr.Addr, st SGState) Tuple {
	var iif int
	var olist addr.MifSet

	if st.SPTbit || st.SourceDirectlyConnected {
		iif = st.RPFInterfaceS
		olist = st.InheritedOlistSG
	} else {
		iif = st.RPFInterfaceRP
		olist = st.InheritedOlistSGRpt
	}

	olist.Reset(iif)

	disable := olist.Not()
	if st.SwitchToSPTDesired && st.RPFInterfaceS != st.RPFInterfaceRP && st.RPFInterfaceS != addr.VifIndexInvalid {
		disable.Reset(st.RPFInterfaceS)
	}

	return Tuple{
		Source:               source,
		Group:                group,
		IifVifIndex:          iif,
		Olist:                olist,
		OlistDisableWrongvif: disable,
	}
}

// Invalid reports whether the projection has no usable RPF interface,
// meaning the kernel entry must be torn down (spec §4.9).
func (t Tuple) Invalid() bool { return t.IifVifIndex == addr.VifIndexInvalid }

// Entry is one tracked MFC record (spec §3.5).
type Entry struct {
	Source addr.Addr
	Group  addr.Addr

	current  Tuple
	hasTuple bool

	RPAddr addr.Addr

	hasIdleMonitor      bool
	hasSPTSwitchMonitor bool
	hasForcedDeletion   bool

	idleTimer clock.Timer
}

// NewEntry creates an MFC entry for (S,G), created on first data upcall
// or by MRE projection (spec §3.5).
func NewEntry(source, group addr.Addr) *Entry {
	return &Entry{Source: source, Group: group}
}

// Apply writes a freshly projected tuple, reporting whether it differs
// from what's already installed so the caller can suppress a bit-
// identical kernel rewrite (spec §4.9).
func (e *Entry) Apply(t Tuple) (changed bool) {
	if e.hasTuple && e.current.IifVifIndex == t.IifVifIndex &&
		e.current.Olist.Equal(t.Olist) &&
		e.current.OlistDisableWrongvif.Equal(t.OlistDisableWrongvif) {
		return false
	}
	e.current = t
	e.hasTuple = true
	return true
}

// Current returns the last-applied tuple.
func (e *Entry) Current() Tuple { return e.current }

// SetRPAddr records the RP this entry's keepalive is governed by. A zero
// RPAddr means this is not an RP-side (S,G) entry, so the idle monitor
// uses the short default keepalive instead of PIM_RP_KEEPALIVE_PERIOD
// (spec §4.10, register.Decision.SetRPKeepalive).
func (e *Entry) SetRPAddr(a addr.Addr) { e.RPAddr = a }

// IsRPSide reports whether this entry is governed by an RP keepalive,
// i.e. an RP address was recorded via SetRPAddr.
func (e *Entry) IsRPSide() bool { return !e.RPAddr.Zero() }
