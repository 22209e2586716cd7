// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package mrt implements the Multicast Routing Entry store and the
// cooperative task engine that drives its per-interface, upstream, and
// Assert state machines (spec §3.4, §4.4-4.7, components E and F).
package mrt

import (
	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// Kind discriminates the four MRE variants sharing one table.
type Kind int

const (
	KindRP Kind = iota
	KindWC
	KindSG
	KindSGRpt
)

func (k Kind) String() string {
	switch k {
	case KindRP:
		return "RP"
	case KindWC:
		return "WC"
	case KindSG:
		return "SG"
	default:
		return "SG_RPT"
	}
}

// Key identifies an MRE: (Kind, Source, Group). WC and RP entries store
// no source (RP additionally has no group); the table still keys on the
// triple for a single shared index.
type Key struct {
	Kind   Kind
	Source addr.Addr
	Group  addr.Addr
}

// DownState is a per-interface downstream J/P FSM state (spec §4.5).
type DownState int

const (
	DownNoInfo DownState = iota
	DownJoin
	DownPrunePending
	DownPruneTmp
	DownPrunePendingTmp
)

// UpstreamState is the (S,G) upstream Join/Prune FSM state (spec §4.6).
type UpstreamState int

const (
	UpNoInfo UpstreamState = iota
	UpJoin
)

// AssertState is the per-interface Assert FSM state (spec §4.7).
type AssertState int

const (
	AssertNoInfo AssertState = iota
	AssertIAmWinner
	AssertIAmLoser
)

// AssertMetric is the (preference, metric, addr) tuple compared
// lexicographically, smaller preference/metric wins, addresses broken by
// largest (spec §4.7).
type AssertMetric struct {
	Preference uint32
	Metric     uint32
	Addr       addr.Addr
}

// Less reports whether m is strictly better than other.
func (m AssertMetric) Less(other AssertMetric) bool {
	if m.Preference != other.Preference {
		return m.Preference < other.Preference
	}
	if m.Metric != other.Metric {
		return m.Metric < other.Metric
	}
	return other.Addr.Less(m.Addr)
}

// downIface is the per-vif downstream+assert state bundle inside one MRE.
type downIface struct {
	state       DownState
	expiry      clock.Timer
	prunePending clock.Timer

	assertState  AssertState
	assertWinner AssertMetric
	assertTimer  clock.Timer
}

// Entry is one multicast routing entry (spec §3.4).
type Entry struct {
	Key Key

	down map[int]*downIface

	// Local-receiver membership, fed by the IGMP/MLD collaborator.
	Include addr.MifSet
	Exclude addr.MifSet

	// Upstream state.
	upstreamState  UpstreamState
	JoinDesired    bool
	CouldRegister  bool
	SPTbit         bool
	upstreamTimer  clock.Timer
	overrideTimer  clock.Timer
	rpfNeighbor    addr.Addr

	// Keepalive (SG only).
	keepaliveTimer           clock.Timer
	IsKATSetToRPKeepalive    bool

	RPAddr          addr.Addr
	RPFNbrRP        addr.Addr
	RPFNbrS         addr.Addr
	RPFInterfaceRP  int
	RPFInterfaceS   int

	isTaskDeletePending bool
	references          int
}

func newEntry(k Key) *Entry {
	return &Entry{
		Key:            k,
		down:           make(map[int]*downIface),
		RPFInterfaceRP: addr.VifIndexInvalid,
		RPFInterfaceS:  addr.VifIndexInvalid,
	}
}

func (e *Entry) iface(vif int) *downIface {
	d, ok := e.down[vif]
	if !ok {
		d = &downIface{}
		e.down[vif] = d
	}
	return d
}

// DownstreamState returns the current per-vif downstream FSM state.
func (e *Entry) DownstreamState(vif int) DownState {
	if d, ok := e.down[vif]; ok {
		return d.state
	}
	return DownNoInfo
}

// Joins returns the MifSet of interfaces currently in DownJoin, the olist
// contribution of this MRE's downstream state.
func (e *Entry) Joins() addr.MifSet {
	var s addr.MifSet
	for vif, d := range e.down {
		if d.state == DownJoin {
			s.Set(vif)
		}
	}
	return s
}

// Prunes returns the MifSet of interfaces in PrunePending, PruneTmp or
// PrunePendingTmp. Joins counts only the Join state, so the two sets
// never share an interface (the P1 invariant).
func (e *Entry) Prunes() addr.MifSet {
	var s addr.MifSet
	for vif, d := range e.down {
		switch d.state {
		case DownPrunePending, DownPruneTmp, DownPrunePendingTmp:
			s.Set(vif)
		}
	}
	return s
}

// AssertStateOf returns the per-vif Assert FSM state.
func (e *Entry) AssertStateOf(vif int) AssertState {
	if d, ok := e.down[vif]; ok {
		return d.assertState
	}
	return AssertNoInfo
}

// Quiescent reports whether the MRE has no running timers and every
// per-interface FSM is in NoInfo, the precondition for deletion (spec
// §3.4's deletion invariant).
func (e *Entry) Quiescent() bool {
	if e.upstreamTimer != nil || e.overrideTimer != nil || e.keepaliveTimer != nil {
		return false
	}
	if e.upstreamState != UpNoInfo {
		return false
	}
	for _, d := range e.down {
		if d.state != DownNoInfo || d.assertState != AssertNoInfo {
			return false
		}
		if d.expiry != nil || d.prunePending != nil || d.assertTimer != nil {
			return false
		}
	}
	return true
}

// AddReference / RemoveReference track external collaborators (kernel
// MFC, pending tasks) holding this entry alive, gating deletion alongside
// Quiescent (spec §3.4, §4.4's entry_try_remove).
func (e *Entry) AddReference()    { e.references++ }
func (e *Entry) RemoveReference() { e.references-- }
func (e *Entry) Referenced() bool { return e.references > 0 }

// TryRemove reports whether the entry may be safely freed right now.
func (e *Entry) TryRemove() bool {
	return !e.Referenced() && e.Quiescent()
}
