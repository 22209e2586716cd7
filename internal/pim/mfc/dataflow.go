// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mfc

import (
	"time"

	"pim-sm.dev/pimd/internal/clock"
)

// DefaultKeepalivePeriod and DefaultRPKeepalivePeriod mirror the
// mrt package's Keepalive Timer constants (spec §4.9's
// is_kat_set_to_rp_keepalive_period selects between them).
const (
	DefaultKeepalivePeriod   = 210 * time.Second
	DefaultRPKeepalivePeriod = 2*60*time.Second + DefaultKeepalivePeriod
)

// IdleMonitorConfig configures the `<=` idle upcall: no traffic reported
// within Period means the flow went idle (spec §4.9).
type IdleMonitorConfig struct {
	Period time.Duration
}

// SPTSwitchMonitorConfig configures the `>=` switch-to-SPT upcall:
// MinBytes seen within Period triggers the (*,G) -> SPT transition.
type SPTSwitchMonitorConfig struct {
	MinBytes uint64
	Period   time.Duration
}

// InstallIdleMonitor arms the idle dataflow monitor. A zero cfg.Period
// selects the RP keepalive period for an RP-side entry and the default
// keepalive period otherwise (see idlePeriod).
// onIdle is invoked when no traffic is reported within the period; the
// caller resets the timer on every data arrival via NoteTraffic.
func (e *Entry) InstallIdleMonitor(clk clock.Clock, cfg IdleMonitorConfig, onIdle func()) {
	e.hasIdleMonitor = true
	e.rearmIdle(clk, e.idlePeriod(cfg.Period), onIdle)
}

// idlePeriod resolves is_kat_set_to_rp_keepalive_period: an RP-side entry
// (SetRPAddr called) defaults to the longer RP keepalive when the caller
// didn't request an explicit period.
func (e *Entry) idlePeriod(requested time.Duration) time.Duration {
	if requested != 0 {
		return requested
	}
	if e.IsRPSide() {
		return DefaultRPKeepalivePeriod
	}
	return DefaultKeepalivePeriod
}

func (e *Entry) rearmIdle(clk clock.Clock, period time.Duration, onIdle func()) {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	e.idleTimer = clk.AfterFunc(period, func() {
		e.idleTimer = nil
		if onIdle != nil {
			onIdle()
		}
	})
}

// NoteTraffic resets the idle monitor on a data upcall for this (S,G),
// matching the "0 bytes in PIM_KEEPALIVE_PERIOD" idle definition: any
// nonzero traffic restarts the window.
func (e *Entry) NoteTraffic(clk clock.Clock, period time.Duration, onIdle func()) {
	if !e.hasIdleMonitor {
		return
	}
	e.rearmIdle(clk, e.idlePeriod(period), onIdle)
}

// RemoveIdleMonitor disables the idle upcall, e.g. while forced deletion
// is already in progress.
func (e *Entry) RemoveIdleMonitor() {
	e.hasIdleMonitor = false
	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}
}

// HasIdleMonitor reports whether the idle monitor is installed.
func (e *Entry) HasIdleMonitor() bool { return e.hasIdleMonitor }

// SPTSwitchState accumulates bytes seen toward the SPT-switch threshold
// within a fixed window of length Period; the count restarts from zero
// with the first observation after the window ends.
type SPTSwitchState struct {
	cfg       SPTSwitchMonitorConfig
	bytes     uint64
	windowEnd time.Time
}

// InstallSPTSwitchMonitor arms the threshold monitor described in spec
// §4.9, active only when SPT is configured enabled with a nonzero
// threshold and monitoring is desired for this (S,G).
func (e *Entry) InstallSPTSwitchMonitor(cfg SPTSwitchMonitorConfig) *SPTSwitchState {
	e.hasSPTSwitchMonitor = true
	return &SPTSwitchState{cfg: cfg}
}

// Observe records traffic at time now, returning true whenever the bytes
// counted in the current window have reached the configured MinBytes
// threshold, which triggers the (*,G) -> SPT transition.
func (s *SPTSwitchState) Observe(now time.Time, n uint64) bool {
	if now.After(s.windowEnd) {
		s.bytes = 0
		s.windowEnd = now.Add(s.cfg.Period)
	}
	s.bytes += n
	return s.bytes >= s.cfg.MinBytes
}

// HasSPTSwitchMonitor reports whether the threshold monitor is installed.
func (e *Entry) HasSPTSwitchMonitor() bool { return e.hasSPTSwitchMonitor }

// RemoveSPTSwitchMonitor disables the threshold monitor, e.g. once the
// SPT switch has completed and (S,G) state has taken over forwarding.
func (e *Entry) RemoveSPTSwitchMonitor() { e.hasSPTSwitchMonitor = false }

// ForceDelete marks the entry for unconditional removal regardless of
// timers, mirroring has_forced_deletion (spec §3.5).
func (e *Entry) ForceDelete() { e.hasForcedDeletion = true }

// ForcedDeletion reports whether ForceDelete was called.
func (e *Entry) ForcedDeletion() bool { return e.hasForcedDeletion }
