// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import (
	"time"

	"pim-sm.dev/pimd/internal/clock"
)

// DefaultAssertTime and DefaultAssertOverrideInterval are the RFC 4601
// constants the Assert Timer is armed from on a loss (spec §4.7).
const (
	DefaultAssertTime             = 180 * time.Second
	DefaultAssertOverrideInterval = 3 * time.Second
)

type assertIO struct {
	clock     clock.Clock
	sendAssert func(vif int, m AssertMetric)
}

// DataArrivedWrongInterface handles the "data on the wrong interface
// while that interface is in the oif set" trigger: NoInfo -> IAmWinner,
// send an Assert (spec §4.7).
func (e *Entry) DataArrivedWrongInterface(io assertIO, vif int, myMetric AssertMetric) {
	d := e.iface(vif)
	if d.assertState != AssertNoInfo {
		return
	}
	d.assertState = AssertIAmWinner
	d.assertWinner = myMetric
	if io.sendAssert != nil {
		io.sendAssert(vif, myMetric)
	}
}

// ReceiveAssert applies a received Assert's metric on vif per spec §4.7:
// a better metric than the current winner moves this router to IAmLoser
// and arms the Assert Timer to assert_time - assert_override_interval; a
// worse metric received while IAmWinner re-asserts to defend the vif.
func (e *Entry) ReceiveAssert(io assertIO, vif int, myMetric, theirMetric AssertMetric) {
	d := e.iface(vif)
	switch d.assertState {
	case AssertNoInfo:
		if !theirMetric.Less(myMetric) {
			return
		}
		d.assertState = AssertIAmLoser
		d.assertWinner = theirMetric
		e.armAssertTimer(io, d, vif)

	case AssertIAmWinner:
		if theirMetric.Less(myMetric) {
			d.assertState = AssertIAmLoser
			d.assertWinner = theirMetric
			e.armAssertTimer(io, d, vif)
		} else if io.sendAssert != nil {
			io.sendAssert(vif, myMetric)
		}

	case AssertIAmLoser:
		if theirMetric.Less(d.assertWinner) {
			d.assertWinner = theirMetric
			e.armAssertTimer(io, d, vif)
		} else if theirMetric == d.assertWinner {
			e.armAssertTimer(io, d, vif)
		}
	}
}

func (e *Entry) armAssertTimer(io assertIO, d *downIface, vif int) {
	stopTimer(d.assertTimer)
	delay := DefaultAssertTime - DefaultAssertOverrideInterval
	d.assertTimer = io.clock.AfterFunc(delay, func() { e.onAssertTimeout(vif) })
}

func (e *Entry) onAssertTimeout(vif int) {
	d := e.iface(vif)
	d.assertState = AssertNoInfo
	d.assertTimer = nil
}
