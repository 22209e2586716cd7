// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import "time"

// JPEntry is one decoded (group, source-list) action extracted from a
// Join/Prune message, prior to being committed against the MRE store.
type JPEntry struct {
	Kind     Kind
	Source   Entry
	Action   DownstreamEvent
}

// JPBatch accumulates every entry for one target neighbor's J/P message
// before it is committed atomically, so a truncated or malformed message
// never partially mutates MRE state (spec §4.5).
//
// SG_RPT entries use the PruneTmp/PrunePendingTmp intermediate states
// during accumulation: a (S,G,rpt) Prune temporarily marks the entry so
// a same-message (S,G) Join can override it before commit, matching RFC
// 4601's "Prune(S,G,rpt) is overridden by a Join(S,G) in the same
// message" rule.
type JPBatch struct {
	vif      int
	holdtime time.Duration
	sgrptTmp map[Key]DownState
	joins    []Key
	prunes   []Key
}

// NewJPBatch starts accumulating a batch for messages received on vif
// carrying the given Holdtime.
func NewJPBatch(vif int, holdtime time.Duration) *JPBatch {
	return &JPBatch{vif: vif, holdtime: holdtime, sgrptTmp: make(map[Key]DownState)}
}

// StageJoin records a non-SG_RPT Join/Prune entry (RP, WC, or SG) for
// this batch's atomic commit.
func (b *JPBatch) StageJoin(k Key) { b.joins = append(b.joins, k) }

// StagePrune records a non-SG_RPT Prune entry for this batch's atomic
// commit.
func (b *JPBatch) StagePrune(k Key) { b.prunes = append(b.prunes, k) }

// StageSGRptPrune marks an (S,G,rpt) entry as provisionally pruned for
// this batch without touching live state yet.
func (b *JPBatch) StageSGRptPrune(k Key) {
	if cur, ok := b.sgrptTmp[k]; !ok || cur != DownPruneTmp {
		b.sgrptTmp[k] = DownPruneTmp
	}
}

// OverrideSGRptWithSGJoin cancels a staged (S,G,rpt) prune when the same
// message also carries a Join(S,G) for the identical (S,G) pair.
func (b *JPBatch) OverrideSGRptWithSGJoin(sgKey Key) {
	rptKey := Key{Kind: KindSGRpt, Source: sgKey.Source, Group: sgKey.Group}
	delete(b.sgrptTmp, rptKey)
}

// Commit applies every staged SG_RPT transition against store, using
// PrunePendingTmp as the window before the real PrunePending state is
// entered, mirroring the live (S,G) FSM's override-interval logic.
func (b *JPBatch) Commit(store *Store, io downstreamIO) {
	for _, k := range b.joins {
		if e, ok := store.Get(k); ok {
			e.ReceiveJP(io, b.vif, EventRXJoin, b.holdtime)
		}
	}
	for _, k := range b.prunes {
		if e, ok := store.Get(k); ok {
			e.ReceiveJP(io, b.vif, EventRXPrune, b.holdtime)
		}
	}
	for k, staged := range b.sgrptTmp {
		if staged != DownPruneTmp {
			continue
		}
		e, ok := store.Get(k)
		if !ok {
			continue
		}
		d := e.iface(b.vif)
		switch d.state {
		case DownJoin:
			d.state = DownPrunePendingTmp
			delay := time.Duration(0)
			if io.neighborCount(b.vif) > 1 {
				delay = io.overrideInterval(b.vif)
			}
			e.armPrunePending(io, d, b.vif, delay)
		case DownPrunePendingTmp, DownPruneTmp:
			// Already staged this round; no-op.
		default:
			d.state = DownPruneTmp
		}
	}
}
