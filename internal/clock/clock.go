// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package clock abstracts time so the protocol engine's timer-driven state
// machines (neighbor liveness, J/P expiry, Assert, BSR, Keepalive) can be
// driven deterministically in tests instead of racing the wall clock.
package clock

import "time"

// Clock is the time source every timer-owning subsystem is built against.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of time.Timer the engine needs. Stop is idempotent
// and safe to call on an already-fired timer, matching the spec's
// requirement that timer owners can always cancel before deallocation.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Real is the wall-clock Clock used in production.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool                 { return r.t.Stop() }
func (r realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
