// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import (
	"math/rand"
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// DefaultTPeriodic is the periodic upstream Join/Prune refresh interval.
const DefaultTPeriodic = 60 * time.Second

// upstreamIO is the send/timer surface the upstream FSM needs, kept
// separate from downstreamIO since the two FSMs are driven by different
// callers (olist recomputation vs. per-neighbor J/P decode).
type upstreamIO struct {
	clock            clock.Clock
	sendJoin         func(nbr addr.Addr)
	sendPrune        func(nbr addr.Addr)
	overrideInterval time.Duration
}

// RecomputeJoinDesired updates JoinDesired per spec §4.6 and drives the
// upstream FSM transition if the result changed JoinDesired's truth
// value: entering Join from NoInfo sends a Join and starts T_periodic;
// leaving Join sends a Prune to the current RPF neighbor.
func (e *Entry) RecomputeJoinDesired(io upstreamIO, desired bool, rpfNeighbor addr.Addr) {
	e.JoinDesired = desired
	switch {
	case desired && e.upstreamState == UpNoInfo:
		e.upstreamState = UpJoin
		e.rpfNeighbor = rpfNeighbor
		if io.sendJoin != nil {
			io.sendJoin(rpfNeighbor)
		}
		e.armUpstreamTimer(io, DefaultTPeriodic)

	case !desired && e.upstreamState == UpJoin:
		e.upstreamState = UpNoInfo
		if io.sendPrune != nil {
			io.sendPrune(e.rpfNeighbor)
		}
		stopTimer(e.upstreamTimer)
		e.upstreamTimer = nil
		stopTimer(e.overrideTimer)
		e.overrideTimer = nil
	}
}

// RPFNeighborChanged handles an RPF-neighbor change while in Join: prune
// the old neighbor, join the new one, and restart T_periodic (spec
// §4.6).
func (e *Entry) RPFNeighborChanged(io upstreamIO, newNbr addr.Addr) {
	if e.upstreamState != UpJoin {
		e.rpfNeighbor = newNbr
		return
	}
	old := e.rpfNeighbor
	if io.sendPrune != nil && old != newNbr {
		io.sendPrune(old)
	}
	e.rpfNeighbor = newNbr
	if io.sendJoin != nil {
		io.sendJoin(newNbr)
	}
	e.armUpstreamTimer(io, DefaultTPeriodic)
}

func (e *Entry) armUpstreamTimer(io upstreamIO, d time.Duration) {
	stopTimer(e.upstreamTimer)
	e.upstreamTimer = io.clock.AfterFunc(d, func() { e.onUpstreamTimerExpiry(io) })
}

func (e *Entry) onUpstreamTimerExpiry(io upstreamIO) {
	if e.upstreamState != UpJoin {
		return
	}
	if io.sendJoin != nil {
		io.sendJoin(e.rpfNeighbor)
	}
	e.armUpstreamTimer(io, DefaultTPeriodic)
}

// ReceivePeerPrune handles hearing another router's Prune(S,G) for the
// same upstream interface: if this router is not the only joiner it
// schedules a randomised override Join within [0, overrideInterval]
// (spec §4.6), suppressing the peer's prune from taking effect.
func (e *Entry) ReceivePeerPrune(io upstreamIO, soleJoiner bool) {
	if e.upstreamState != UpJoin || soleJoiner {
		return
	}
	if e.overrideTimer != nil {
		return
	}
	delay := time.Duration(rand.Int63n(int64(io.overrideInterval) + 1))
	e.overrideTimer = io.clock.AfterFunc(delay, func() {
		e.overrideTimer = nil
		if e.upstreamState == UpJoin && io.sendJoin != nil {
			io.sendJoin(e.rpfNeighbor)
		}
	})
}
