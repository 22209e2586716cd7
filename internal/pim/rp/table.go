// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rp implements the RP table: the deterministic group->RP
// resolution described in spec §3.6 and §4.1, including the longest-
// prefix + priority + hash tiebreak and the processing-list lifecycle for
// RPs being drained after deletion.
package rp

import (
	"pim-sm.dev/pimd/internal/pim/addr"
)

// LearnedMethod records how an RP entry was discovered.
type LearnedMethod int

const (
	LearnedBootstrap LearnedMethod = iota
	LearnedStatic
	LearnedAutoRP
)

func (m LearnedMethod) String() string {
	switch m {
	case LearnedStatic:
		return "static"
	case LearnedAutoRP:
		return "autorp"
	default:
		return "bootstrap"
	}
}

// Entry is one candidate-RP record.
type Entry struct {
	RPAddr      addr.Addr
	GroupPrefix addr.Prefix
	Priority    uint8
	HashMaskLen int
	Learned     LearnedMethod

	// isUpdated is set by AddRP/DeleteRP on every entry whose group
	// prefix overlaps the changed one, so ApplyChanges can enqueue
	// task_rp_changed for each affected RP (spec §4.1).
	isUpdated bool

	// children tracks dependent MRE/MFC keys bound to this RP, opaque to
	// the table itself — callers (mrt) register/unregister membership so
	// the table knows when a deleted RP can be fully removed.
	children map[string]struct{}
}

func (e *Entry) HasChildren() bool { return len(e.children) > 0 }

func (e *Entry) AddChild(key string) {
	if e.children == nil {
		e.children = make(map[string]struct{})
	}
	e.children[key] = struct{}{}
}

func (e *Entry) RemoveChild(key string) {
	delete(e.children, key)
}

// Sentinel is the rp_addr = 0 RP owning groups with no resolved RP.
var Sentinel = &Entry{RPAddr: addr.Addr{}, GroupPrefix: addr.FullMulticast(addr.V4)}

// Table holds the active RP-set and a processing list of RPs pending
// removal while dependents are drained (spec §3.6, §4.1).
type Table struct {
	entries    []*Entry
	processing []*Entry
	family     addr.Family
}

// New creates an empty RP table for the given address family.
func New(family addr.Family) *Table {
	return &Table{family: family}
}

// Entries returns the live RP-set, for diagnostics/CLI use.
func (t *Table) Entries() []*Entry {
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Processing returns RPs pending removal once their children drain.
func (t *Table) Processing() []*Entry {
	out := make([]*Entry, len(t.processing))
	copy(out, t.processing)
	return out
}

// AddRP inserts or updates a candidate-RP entry and marks every entry
// whose group prefix overlaps it as updated, returning the set of RP
// addresses ApplyChanges must later re-resolve.
func (t *Table) AddRP(e Entry) []addr.Addr {
	for _, existing := range t.entries {
		if existing.RPAddr == e.RPAddr && existing.GroupPrefix == e.GroupPrefix {
			existing.Priority = e.Priority
			existing.HashMaskLen = e.HashMaskLen
			existing.Learned = e.Learned
			existing.isUpdated = true
			return t.markOverlapping(existing.GroupPrefix)
		}
	}
	ne := &Entry{
		RPAddr:      e.RPAddr,
		GroupPrefix: e.GroupPrefix,
		Priority:    e.Priority,
		HashMaskLen: e.HashMaskLen,
		Learned:     e.Learned,
		isUpdated:   true,
	}
	t.entries = append(t.entries, ne)
	return t.markOverlapping(ne.GroupPrefix)
}

// DeleteRP removes a candidate-RP entry. If it still has live children it
// moves to the processing list instead of being freed immediately (spec
// §4.1); ApplyChanges reports the affected RP addresses to re-resolve.
func (t *Table) DeleteRP(rpAddr addr.Addr, groupPrefix addr.Prefix) []addr.Addr {
	for i, e := range t.entries {
		if e.RPAddr == rpAddr && e.GroupPrefix == groupPrefix {
			t.entries = append(t.entries[:i:i], t.entries[i+1:]...)
			if e.HasChildren() {
				t.processing = append(t.processing, e)
			}
			return t.markOverlapping(groupPrefix)
		}
	}
	return nil
}

func (t *Table) markOverlapping(p addr.Prefix) []addr.Addr {
	seen := map[addr.Addr]struct{}{}
	var affected []addr.Addr
	for _, e := range t.entries {
		if e.GroupPrefix.Overlaps(p) {
			e.isUpdated = true
			if _, ok := seen[e.RPAddr]; !ok {
				seen[e.RPAddr] = struct{}{}
				affected = append(affected, e.RPAddr)
			}
		}
	}
	return affected
}

// ApplyChanges clears isUpdated on every entry and returns the set of RP
// addresses that changed since the last call, for the caller to enqueue
// task_rp_changed against (spec §4.1's "commit hook").
func (t *Table) ApplyChanges() []addr.Addr {
	seen := map[addr.Addr]struct{}{}
	var changed []addr.Addr
	for _, e := range t.entries {
		if e.isUpdated {
			e.isUpdated = false
			if _, ok := seen[e.RPAddr]; !ok {
				seen[e.RPAddr] = struct{}{}
				changed = append(changed, e.RPAddr)
			}
		}
	}
	return changed
}

// DrainProcessing removes processing-list entries with no remaining
// children, called after dependent MREs have re-homed (spec §4.1).
func (t *Table) DrainProcessing() {
	kept := t.processing[:0]
	for _, e := range t.processing {
		if e.HasChildren() {
			kept = append(kept, e)
		}
	}
	t.processing = kept
}

// Find resolves the RP for group using the four-step tiebreak of spec
// §4.1: longest group-prefix, then lowest priority within a learned
// method, then highest PIM hash value, then highest RP address. It
// returns Sentinel (and false) when no candidate RP covers the group.
func (t *Table) Find(group addr.Addr) (*Entry, bool) {
	var candidates []*Entry
	for _, e := range t.entries {
		if e.GroupPrefix.Contains(group) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return Sentinel, false
	}

	best := longestPrefixGroup(candidates)
	best = prioritySurvivors(best)
	if len(best) == 1 {
		return best[0], true
	}
	return hashAndAddrWinner(group, best), true
}

func longestPrefixGroup(cands []*Entry) []*Entry {
	maxBits := -1
	for _, c := range cands {
		if c.GroupPrefix.Bits() > maxBits {
			maxBits = c.GroupPrefix.Bits()
		}
	}
	var out []*Entry
	for _, c := range cands {
		if c.GroupPrefix.Bits() == maxBits {
			out = append(out, c)
		}
	}
	return out
}

// prioritySurvivors applies step 2: lowest priority wins, but only among
// RPs learned by the same method as each other — if the candidates come
// from more than one method, every candidate survives to step 3
// whatever its priority.
func prioritySurvivors(cands []*Entry) []*Entry {
	byMethod := map[LearnedMethod][]*Entry{}
	for _, c := range cands {
		byMethod[c.Learned] = append(byMethod[c.Learned], c)
	}
	if len(byMethod) > 1 {
		// Mixed methods: priority isn't comparable across methods, so
		// every original candidate proceeds to the hash tiebreak.
		return cands
	}
	minPriority := uint8(255)
	for _, c := range cands {
		if c.Priority < minPriority {
			minPriority = c.Priority
		}
	}
	var out []*Entry
	for _, c := range cands {
		if c.Priority == minPriority {
			out = append(out, c)
		}
	}
	return out
}

func hashAndAddrWinner(group addr.Addr, cands []*Entry) *Entry {
	best := cands[0]
	bestHash := hashValue(group, best.HashMaskLen, best.RPAddr)
	for _, c := range cands[1:] {
		h := hashValue(group, c.HashMaskLen, c.RPAddr)
		if h > bestHash || (h == bestHash && best.RPAddr.Less(c.RPAddr)) {
			// Step 4: on a hash tie, the larger RP address wins.
			best, bestHash = c, h
		}
	}
	return best
}
