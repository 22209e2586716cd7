// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nbr implements the per-vif PIM neighbor table, Hello option
// tracking, and DR election (spec §3.3, §4.3, component D).
package nbr

import (
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// Me is the sentinel representing the local router in DR comparisons
// (pim_nbr_me in spec §3.3).
var Me = addr.Addr{}

// Entry is one discovered PimNbr record.
type Entry struct {
	Addr        addr.Addr
	Version     uint8
	DRPriority  *uint32 // nil if the neighbor never sent the option
	GenID       *uint32
	PropagationDelayMS *uint32
	OverrideIntervalMS *uint32
	TrackingSupportDisabled bool
	HoldtimeSeconds uint16

	// Generation increases every time GenID changes, letting dependent
	// MRE snapshots detect staleness across a pim_nbr_gen_id_changed task.
	Generation uint64

	livenessTimer clock.Timer
}

// ChangeKind reports what kind of change a Hello caused, driving which
// task the caller should enqueue.
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangeNew
	ChangeGenID
	ChangeRefresh
)

// Table tracks the neighbors heard on a single vif and the elected DR.
type Table struct {
	clock      clock.Clock
	vifIndex   int
	entries    map[addr.Addr]*Entry
	onExpire   func(n *Entry)
	dr         addr.Addr
	drPriority *uint32
	localAddr  addr.Addr
	localPrio  uint32
}

// New creates a neighbor table for the given vif. onExpire is invoked
// when a neighbor's liveness timer fires, so the caller can enqueue
// task_pim_nbr_changed and re-run DR election.
func New(clk clock.Clock, vifIndex int, localAddr addr.Addr, localPrio uint32, onExpire func(*Entry)) *Table {
	return &Table{
		clock:     clk,
		vifIndex:  vifIndex,
		entries:   make(map[addr.Addr]*Entry),
		onExpire:  onExpire,
		localAddr: localAddr,
		localPrio: localPrio,
	}
}

// Entries returns all currently-live neighbors.
func (t *Table) Entries() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}

// Get returns the neighbor entry for addr, if any.
func (t *Table) Get(a addr.Addr) (*Entry, bool) {
	e, ok := t.entries[a]
	return e, ok
}

// HelloOptions is the subset of a decoded Hello relevant to neighbor
// tracking and DR election.
type HelloOptions struct {
	Holdtime           uint16
	DRPriority         *uint32
	GenID              *uint32
	PropagationDelayMS *uint32
	OverrideIntervalMS *uint32
	TrackingSupportDisabled bool
}

// ReceiveHello processes a Hello from src, returning what kind of change
// occurred. The Neighbor-Liveness Timer is always (re)armed to the
// reported Holdtime, matching spec §4.3's "Always (re)arm..." rule.
// Holdtime == 0 means "forget me" (graceful vif stop on the peer).
func (t *Table) ReceiveHello(src addr.Addr, opts HelloOptions) ChangeKind {
	if opts.Holdtime == 0 {
		if e, ok := t.entries[src]; ok {
			t.stopTimer(e)
			delete(t.entries, src)
		}
		return ChangeNone
	}

	e, existed := t.entries[src]
	kind := ChangeRefresh
	if !existed {
		e = &Entry{Addr: src, Version: 2}
		t.entries[src] = e
		kind = ChangeNew
	} else if opts.GenID != nil && (e.GenID == nil || *e.GenID != *opts.GenID) {
		kind = ChangeGenID
		e.Generation++
	}

	e.HoldtimeSeconds = opts.Holdtime
	e.DRPriority = opts.DRPriority
	e.GenID = opts.GenID
	e.PropagationDelayMS = opts.PropagationDelayMS
	e.OverrideIntervalMS = opts.OverrideIntervalMS
	e.TrackingSupportDisabled = opts.TrackingSupportDisabled

	t.armTimer(e)
	return kind
}

func (t *Table) armTimer(e *Entry) {
	t.stopTimer(e)
	d := time.Duration(e.HoldtimeSeconds) * time.Second
	e.livenessTimer = t.clock.AfterFunc(d, func() { t.expire(e.Addr) })
}

func (t *Table) stopTimer(e *Entry) {
	if e.livenessTimer != nil {
		e.livenessTimer.Stop()
		e.livenessTimer = nil
	}
}

func (t *Table) expire(a addr.Addr) {
	e, ok := t.entries[a]
	if !ok {
		return
	}
	delete(t.entries, a)
	if t.onExpire != nil {
		t.onExpire(e)
	}
}

// Remove deletes a neighbor immediately (e.g. interface down), stopping
// its timer first per the spec's timer-ownership rule.
func (t *Table) Remove(a addr.Addr) {
	if e, ok := t.entries[a]; ok {
		t.stopTimer(e)
		delete(t.entries, a)
	}
}

// Count returns the number of live neighbors on this vif, used by the
// downstream J/P FSM to decide whether a Prune-Pending window or a
// PruneEcho is needed (spec §4.5: "if more than one neighbor present").
func (t *Table) Count() int { return len(t.entries) }

// ElectDR recomputes the designated router per spec §4.3: highest
// DR-priority wins, ignoring priority entirely if ANY neighbor (or the
// local router) omitted the option, tiebreak by largest address. It
// returns the winner and whether the winner changed since the last call.
func (t *Table) ElectDR() (addr.Addr, bool) {
	winner := t.localAddr
	winnerPrio := t.localPrio
	usePriority := true

	for _, e := range t.entries {
		if e.DRPriority == nil {
			usePriority = false
			break
		}
	}

	for _, e := range t.entries {
		if usePriority {
			p := uint32(0)
			if e.DRPriority != nil {
				p = *e.DRPriority
			}
			if p > winnerPrio || (p == winnerPrio && winner.Less(e.Addr)) {
				winner, winnerPrio = e.Addr, p
			}
		} else if winner.Less(e.Addr) {
			winner = e.Addr
		}
	}

	changed := winner != t.dr
	t.dr = winner
	return winner, changed
}

// DR returns the currently elected designated router.
func (t *Table) DR() addr.Addr { return t.dr }

// IAmDR reports whether the local router is the elected DR.
func (t *Table) IAmDR() bool { return t.dr == t.localAddr }
