// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import (
	"time"

	"pim-sm.dev/pimd/internal/clock"
)

// DownstreamEvent distinguishes the two message events the FSM reacts to.
type DownstreamEvent int

const (
	EventRXJoin DownstreamEvent = iota
	EventRXPrune
)

// downstreamIO carries everything the FSM transitions need without
// exposing Store internals to callers (sending a PruneEcho, reading the
// neighbor count on this vif).
type downstreamIO struct {
	clock          clock.Clock
	neighborCount  func(vif int) int
	overrideInterval func(vif int) time.Duration
	sendPruneEcho  func(vif int)
}

// ReceiveJP applies one (*,G)/(S,G) downstream J/P event on vif per the
// transition table of spec §4.5. holdtime is the batch's Holdtime TLV
// value, used to (re)arm the Expiry Timer on Join.
func (e *Entry) ReceiveJP(io downstreamIO, vif int, ev DownstreamEvent, holdtime time.Duration) {
	d := e.iface(vif)
	switch d.state {
	case DownNoInfo:
		if ev == EventRXJoin {
			d.state = DownJoin
			e.armExpiry(io, d, vif, holdtime)
		}
		// NoInfo + RX Prune: no neighbor state to prune, ignored.

	case DownJoin:
		switch ev {
		case EventRXJoin:
			e.armExpiry(io, d, vif, holdtime)
		case EventRXPrune:
			d.state = DownPrunePending
			delay := time.Duration(0)
			if io.neighborCount(vif) > 1 {
				delay = io.overrideInterval(vif)
			}
			e.armPrunePending(io, d, vif, delay)
		}

	case DownPrunePending:
		switch ev {
		case EventRXJoin:
			d.state = DownJoin
			stopTimer(d.prunePending)
			d.prunePending = nil
			e.armExpiry(io, d, vif, holdtime)
		case EventRXPrune:
			// Stay PrunePending; a second Prune doesn't reset the timer.
		}
	}
}

func (e *Entry) armExpiry(io downstreamIO, d *downIface, vif int, holdtime time.Duration) {
	stopTimer(d.expiry)
	d.expiry = io.clock.AfterFunc(holdtime, func() { e.onExpiry(io, vif) })
}

func (e *Entry) armPrunePending(io downstreamIO, d *downIface, vif int, delay time.Duration) {
	stopTimer(d.prunePending)
	d.prunePending = io.clock.AfterFunc(delay, func() { e.onPrunePendingExpiry(io, vif) })
}

func (e *Entry) onExpiry(io downstreamIO, vif int) {
	d := e.iface(vif)
	d.state = DownNoInfo
	d.expiry = nil
}

func (e *Entry) onPrunePendingExpiry(io downstreamIO, vif int) {
	d := e.iface(vif)
	d.state = DownNoInfo
	d.prunePending = nil
	if io.neighborCount(vif) > 0 && io.sendPruneEcho != nil {
		io.sendPruneEcho(vif)
	}
}

// InterfaceDown drives "interface down or last neighbor removal ->
// NoInfo" for every interface-scoped FSM on vif (spec §4.5).
func (e *Entry) InterfaceDown(vif int) {
	d, ok := e.down[vif]
	if !ok {
		return
	}
	stopTimer(d.expiry)
	stopTimer(d.prunePending)
	stopTimer(d.assertTimer)
	delete(e.down, vif)
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
