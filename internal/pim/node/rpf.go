// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package node

import (
	"pim-sm.dev/pimd/internal/pim/addr"
	"pim-sm.dev/pimd/internal/pim/kernelmfc"
	"pim-sm.dev/pimd/internal/pim/mfc"
	"pim-sm.dev/pimd/internal/pim/mrt"
	"pim-sm.dev/pimd/internal/pim/wire"
)

// upstreamJoinPruneHoldtimeSeconds is RFC 7761's recommended 3.5x the
// default Join/Prune Period (spec §6.5's 60s), the holdtime this build
// advertises on every upstream Join/Prune it originates.
const upstreamJoinPruneHoldtimeSeconds = 210

// recomputeRPF refreshes e's RPF neighbor/interface fields against the
// MRIB and drives the upstream Join/Prune FSM and, for (S,G) entries,
// the MFC projection (spec §4.1, §4.6, §4.9). It is the single place
// node resolves "who do I RPF towards, and is my JoinDesired state still
// correct", called whenever something that could change either answer
// happens: an RP-set change, a neighbor change, or a downstream J/P.
//
// The olist fed to mfc.Project is e.Joins() directly rather than the
// full pim_include/pim_exclude inherited-olist macros RFC 4601 §4.1
// defines across WC/SG/SG_RPT entries jointly — a narrower but still
// spec-faithful approximation (every DownJoin interface is forwarded,
// no cross-entry override logic) pending that macro's implementation.
func (n *Node) recomputeRPF(e *mrt.Entry) {
	if n.mrib == nil {
		return
	}

	switch e.Key.Kind {
	case mrt.KindWC, mrt.KindSGRpt:
		n.recomputeRPFToRP(e)
	case mrt.KindSG:
		n.recomputeRPFToRP(e)
		n.recomputeRPFToSource(e)
		n.projectMFC(e)
	}
}

func (n *Node) recomputeRPFToRP(e *mrt.Entry) {
	group := e.Key.Group
	rpEntry, ok := n.rps.Find(group)
	if !ok {
		return
	}
	route, err := n.mrib.RPFLookup(rpEntry.RPAddr)
	if err != nil {
		n.log.WithError(err).Debug("RPF lookup to RP failed", "rp", rpEntry.RPAddr.String())
		return
	}
	e.RPAddr = rpEntry.RPAddr
	e.RPFNbrRP = route.NextHop
	e.RPFInterfaceRP = route.IfIndex // vif index == OS ifindex in this build (spec §6.2)

	io := mrt.NewUpstreamIO(n.clock, n.sendJoinFor(e), n.sendPruneFor(e), n.overrideIntervalOn(route.IfIndex))
	rpfNbr := e.RPFNbrRP
	if e.Key.Kind == mrt.KindSG && e.SPTbit {
		rpfNbr = e.RPFNbrS
	}
	e.RecomputeJoinDesired(io, n.joinDesired(e), rpfNbr)
}

func (n *Node) recomputeRPFToSource(e *mrt.Entry) {
	route, err := n.mrib.RPFLookup(e.Key.Source)
	if err != nil {
		n.log.WithError(err).Debug("RPF lookup to source failed", "source", e.Key.Source.String())
		return
	}
	e.RPFNbrS = route.NextHop
	e.RPFInterfaceS = route.IfIndex

	// A directly-connected route reports its own destination as the
	// next hop (vif.LinuxMrib.RPFLookup's fallback when the kernel route
	// carries no gateway). CouldRegister(S,G) (spec §4.6) requires this
	// router to be both directly attached to S and its elected DR, the
	// two conditions under which it would be the one encapsulating S's
	// traffic into Registers in the first place.
	e.CouldRegister = route.NextHop == e.Key.Source && n.iAmDROn(route.IfIndex)
}

func (n *Node) iAmDROn(vifIndex int) bool {
	t, ok := n.nbrs[vifIndex]
	return ok && t.IAmDR()
}

// joinDesired implements JoinDesired(S,G)/JoinDesired(*,G) (spec §4.6):
// some downstream interface has joined or there is a directly attached
// local receiver, or — for (S,G) only — this router is the RP for G and
// could itself be registering S's traffic, in which case it must stay
// joined to the SPT even with no olist yet. RFC 4601's full formula
// additionally folds in SPT-switch and assert-loser conditions this
// build doesn't yet track at this layer.
func (n *Node) joinDesired(e *mrt.Entry) bool {
	if e.Joins().Any() || e.Include.Any() {
		return true
	}
	if e.Key.Kind != mrt.KindSG {
		return false
	}
	rpEntry, ok := n.rps.Find(e.Key.Group)
	return ok && rpEntry.RPAddr == n.localID && e.CouldRegister
}

func (n *Node) sendJoinFor(e *mrt.Entry) func(nbr addr.Addr) {
	return func(nbr addr.Addr) { n.sendJoinPruneFor(e, nbr, true) }
}

func (n *Node) sendPruneFor(e *mrt.Entry) func(nbr addr.Addr) {
	return func(nbr addr.Addr) { n.sendJoinPruneFor(e, nbr, false) }
}

// sendJoinPruneFor transmits a single-group Join/Prune message expressing
// e's upstream J/P FSM transition towards nbr: a (*,G) entry joins/prunes
// the RP's address with the W+R+S encoded-source bits set (RFC 7761
// §4.9.5.1's "wildcard" encoding); an (S,G) entry joins/prunes the
// source's address with S only, on the source-side RPF interface once
// SPTbit is set and on the RP-side one otherwise — the same RPF neighbor
// RecomputeJoinDesired was given in recomputeRPFToRP.
func (n *Node) sendJoinPruneFor(e *mrt.Entry, nbr addr.Addr, join bool) {
	vifIndex := e.RPFInterfaceRP
	src := e.RPAddr
	flags := wire.SourceFlags{Sparse: true, WildcardBit: true, RPTBit: true}

	switch e.Key.Kind {
	case mrt.KindSG:
		src = e.Key.Source
		flags = wire.SourceFlags{Sparse: true}
		if e.SPTbit {
			vifIndex = e.RPFInterfaceS
		}
	case mrt.KindSGRpt:
		src = e.Key.Source
		flags = wire.SourceFlags{Sparse: true, RPTBit: true}
	}
	if vifIndex == addr.VifIndexInvalid || !src.IsValid() {
		return
	}

	entry := wire.JPSource{Addr: src, MaskLen: src.BitLen(), Flags: flags}
	group := wire.JPGroup{Group: addr.NewPrefix(e.Key.Group, e.Key.Group.BitLen())}
	if join {
		group.Joined = []wire.JPSource{entry}
	} else {
		group.Pruned = []wire.JPSource{entry}
	}

	jp := wire.JoinPrune{
		UpstreamNeighbor: nbr,
		HoldtimeSeconds:  upstreamJoinPruneHoldtimeSeconds,
		Groups:           []wire.JPGroup{group},
	}
	n.send("join_prune", wire.EncodeJoinPrune(jp), allPIMRouters(n.family), vifIndex)
}

// projectMFC recomputes e's kernel-facing MFC tuple and pushes the
// change, if any, to the kernel provider (spec §4.9).
func (n *Node) projectMFC(e *mrt.Entry) {
	if n.kern == nil {
		return
	}
	key := e.Key
	mfcEntry, ok := n.mfcEntries[key]
	if !ok {
		mfcEntry = mfc.NewEntry(key.Source, key.Group)
		n.mfcEntries[key] = mfcEntry
	}

	st := mfc.SGState{
		SPTbit:              e.SPTbit,
		RPFInterfaceS:       e.RPFInterfaceS,
		RPFInterfaceRP:      e.RPFInterfaceRP,
		InheritedOlistSG:    e.Joins(),
		InheritedOlistSGRpt: e.Joins(),
	}
	tuple := mfc.Project(key.Source, key.Group, st)
	if !mfcEntry.Apply(tuple) {
		return
	}

	if tuple.Invalid() {
		if err := n.kern.DelMFC(key.Source, key.Group); err != nil {
			n.log.WithError(err).Debug("failed to remove kernel MFC entry")
		}
		return
	}
	var ttls [addr.MaxVifs]uint8
	for _, v := range tuple.Olist.Slice() {
		ttls[v] = 1
	}
	params := kernelmfc.MFCParams{
		Source: tuple.Source,
		Group:  tuple.Group,
		IifVif: tuple.IifVifIndex,
		Olist:  tuple.Olist,
		TTLs:   ttls,
	}
	if err := n.kern.AddMFC(params); err != nil {
		n.log.WithError(err).Debug("failed to install kernel MFC entry")
	}
}
