// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import (
	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// FindFlags selects which MRE kinds pim_mre_find will match or create
// (spec §4.4).
type FindFlags struct {
	RP, WC, SG, SGRpt bool
	Create            bool
}

// Store is the MRE table: a single map keyed by exact (type, source,
// group) for point lookups. There is no separate group-keyed index;
// per-group queries scan every entry.
type Store struct {
	clock   clock.Clock
	entries map[Key]*Entry
}

// New creates an empty MRE store.
func New(clk clock.Clock) *Store {
	return &Store{clock: clk, entries: make(map[Key]*Entry)}
}

// Find implements pim_mre_find(S, G, flags): exact lookup by kind, with
// Create allocating a fresh entry of the most specific requested kind
// when none exists (spec §4.4).
func (s *Store) Find(source, group addr.Addr, flags FindFlags) (*Entry, bool) {
	try := func(k Key) (*Entry, bool) {
		e, ok := s.entries[k]
		return e, ok
	}

	if flags.SG {
		if e, ok := try(Key{Kind: KindSG, Source: source, Group: group}); ok {
			return e, true
		}
	}
	if flags.SGRpt {
		if e, ok := try(Key{Kind: KindSGRpt, Source: source, Group: group}); ok {
			return e, true
		}
	}
	if flags.WC {
		if e, ok := try(Key{Kind: KindWC, Source: addr.Addr{}, Group: group}); ok {
			return e, true
		}
	}
	if flags.RP {
		if e, ok := try(Key{Kind: KindRP}); ok {
			return e, true
		}
	}

	if !flags.Create {
		return nil, false
	}

	var k Key
	switch {
	case flags.SG:
		k = Key{Kind: KindSG, Source: source, Group: group}
	case flags.SGRpt:
		k = Key{Kind: KindSGRpt, Source: source, Group: group}
	case flags.WC:
		k = Key{Kind: KindWC, Source: addr.Addr{}, Group: group}
	case flags.RP:
		k = Key{Kind: KindRP}
	default:
		return nil, false
	}
	e := newEntry(k)
	s.entries[k] = e
	return e, true
}

// Get returns the entry for an exact key without creating one.
func (s *Store) Get(k Key) (*Entry, bool) {
	e, ok := s.entries[k]
	return e, ok
}

// WCFor returns the (*,G) entry for group, if one has been created.
func (s *Store) WCFor(group addr.Addr) (*Entry, bool) {
	return s.Get(Key{Kind: KindWC, Group: group})
}

// All returns every live entry, for task-engine sweeps and diagnostics.
func (s *Store) All() []*Entry {
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// ForGroup returns every SG/SG_RPT/WC entry for group, used by
// task_rp_changed and task_pim_nbr_changed sweeps.
func (s *Store) ForGroup(group addr.Addr) []*Entry {
	var out []*Entry
	for _, e := range s.entries {
		if e.Key.Kind != KindRP && e.Key.Group == group {
			out = append(out, e)
		}
	}
	return out
}

// TryRemove deletes k if its entry is unreferenced and quiescent,
// matching entry_try_remove's gate (spec §4.4). Returns whether it was
// removed.
func (s *Store) TryRemove(k Key) bool {
	e, ok := s.entries[k]
	if !ok {
		return false
	}
	if !e.TryRemove() {
		e.isTaskDeletePending = true
		return false
	}
	delete(s.entries, k)
	return true
}
