// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import (
	"time"

	"pim-sm.dev/pimd/internal/clock"
)

// DefaultKeepalivePeriod and DefaultRPKeepalivePeriod are the RFC 4601
// Keepalive Timer durations; the RP-side period is longer to tolerate a
// Register-Stop round trip before KAT would otherwise expire (spec
// §4.9's is_kat_set_to_rp_keepalive_period).
const (
	DefaultKeepalivePeriod   = 210 * time.Second
	DefaultRPKeepalivePeriod = 2*60*time.Second + DefaultKeepalivePeriod
)

// StartKeepalive arms (or restarts) the Keepalive Timer, valid only for
// SG entries (spec §3.4's "Keepalive Timer running ⇒ MRE is of type SG"
// invariant).
func (e *Entry) StartKeepalive(clk clock.Clock, onExpiry func()) {
	if e.Key.Kind != KindSG {
		return
	}
	stopTimer(e.keepaliveTimer)
	period := DefaultKeepalivePeriod
	if e.IsKATSetToRPKeepalive {
		period = DefaultRPKeepalivePeriod
	}
	e.keepaliveTimer = clk.AfterFunc(period, func() {
		e.keepaliveTimer = nil
		if onExpiry != nil {
			onExpiry()
		}
	})
}

// StopKeepalive cancels the Keepalive Timer.
func (e *Entry) StopKeepalive() {
	stopTimer(e.keepaliveTimer)
	e.keepaliveTimer = nil
}

// KeepaliveRunning reports whether the timer is currently armed.
func (e *Entry) KeepaliveRunning() bool { return e.keepaliveTimer != nil }
