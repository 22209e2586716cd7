// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package node

import (
	"net/netip"
	"time"

	"pim-sm.dev/pimd/internal/pim/addr"
	"pim-sm.dev/pimd/internal/pim/bsr"
	"pim-sm.dev/pimd/internal/pim/kernelmfc"
	"pim-sm.dev/pimd/internal/pim/mrt"
	"pim-sm.dev/pimd/internal/pim/nbr"
	"pim-sm.dev/pimd/internal/pim/register"
	"pim-sm.dev/pimd/internal/pim/vif"
	"pim-sm.dev/pimd/internal/pim/wire"
)

func (n *Node) handleHello(v *vif.Vif, src addr.Addr, h wire.Hello) {
	t, ok := n.nbrs[v.Index]
	if !ok {
		return
	}
	opts := nbr.HelloOptions{
		DRPriority:              h.DRPriority,
		GenID:                   h.GenID,
		PropagationDelayMS:      toUint32(h.PropagationDelay),
		OverrideIntervalMS:      toUint32(h.OverrideInterval),
		TrackingSupportDisabled: h.TBit,
	}
	if h.Holdtime != nil {
		opts.Holdtime = *h.Holdtime
	} else {
		opts.Holdtime = v.HoldtimeSeconds
	}

	switch t.ReceiveHello(src, opts) {
	case nbr.ChangeNew, nbr.ChangeGenID:
		n.tasks.Enqueue(mrt.Task{Kind: mrt.TaskPimNbrChanged, Vif: v.Index, NbrAddr: src})
	}
	if _, changed := t.ElectDR(); changed {
		n.tasks.Enqueue(mrt.Task{Kind: mrt.TaskIAmDR, Vif: v.Index})
	}
}

func toUint32(p *uint16) *uint32 {
	if p == nil {
		return nil
	}
	v := uint32(*p)
	return &v
}

func (n *Node) handleJoinPrune(v *vif.Vif, src addr.Addr, jp wire.JoinPrune) {
	holdtime := time.Duration(jp.HoldtimeSeconds) * time.Second
	batch := mrt.NewJPBatch(v.Index, holdtime)

	for _, g := range jp.Groups {
		group := addr.New(g.Group.Addr())
		for _, s := range g.Joined {
			k := n.jpKey(s, group)
			n.ensureEntry(k)
			batch.StageJoin(k)
		}
		for _, s := range g.Pruned {
			k := n.jpKey(s, group)
			if s.Flags.RPTBit {
				batch.StageSGRptPrune(k)
				continue
			}
			batch.StagePrune(k)
		}
		for _, s := range g.Joined {
			if k := n.jpKey(s, group); k.Kind == mrt.KindSG {
				batch.OverrideSGRptWithSGJoin(k)
			}
		}
	}

	io := mrt.NewDownstreamIO(n.clock, n.neighborCountOn, n.overrideIntervalOn, n.sendPruneEcho)
	batch.Commit(n.mre, io)
	n.tasks.Enqueue(mrt.Task{Kind: mrt.TaskMribChanged, Vif: v.Index, Addr: src})
}

func (n *Node) jpKey(s wire.JPSource, group addr.Addr) mrt.Key {
	switch {
	case s.Flags.WildcardBit:
		return mrt.Key{Kind: mrt.KindWC, Group: group}
	case s.Flags.RPTBit:
		return mrt.Key{Kind: mrt.KindSGRpt, Source: s.Addr, Group: group}
	default:
		return mrt.Key{Kind: mrt.KindSG, Source: s.Addr, Group: group}
	}
}

func (n *Node) ensureEntry(k mrt.Key) {
	n.mre.Find(k.Source, k.Group, mrt.FindFlags{
		RP:     k.Kind == mrt.KindRP,
		WC:     k.Kind == mrt.KindWC,
		SG:     k.Kind == mrt.KindSG,
		SGRpt:  k.Kind == mrt.KindSGRpt,
		Create: true,
	})
}

func (n *Node) neighborCountOn(vifIndex int) int {
	if t, ok := n.nbrs[vifIndex]; ok {
		return t.Count()
	}
	return 0
}

func (n *Node) overrideIntervalOn(vifIndex int) time.Duration {
	if v, ok := n.vifs.Get(vifIndex); ok {
		return time.Duration(v.OverrideIntervalMS) * time.Millisecond
	}
	return vif.DefaultOverrideIntervalMS * time.Millisecond
}

func (n *Node) sendPruneEcho(vifIndex int) {
	v, ok := n.vifs.Get(vifIndex)
	if !ok {
		return
	}
	buf := wire.EncodeJoinPrune(wire.JoinPrune{UpstreamNeighbor: v.PrimaryAddr})
	n.send("join_prune", buf, allPIMRouters(n.family), vifIndex)
}

func (n *Node) handleAssert(v *vif.Vif, src addr.Addr, a wire.Assert) {
	io := mrt.NewAssertIO(n.clock, func(vifIndex int, m mrt.AssertMetric) {
		n.send("assert", wire.EncodeAssert(wire.Assert{
			Group:      a.Group,
			Source:     a.Source,
			RPTBit:     a.RPTBit,
			Preference: m.Preference,
			Metric:     m.Metric,
		}), allPIMRouters(n.family), vifIndex)
	})

	flags := mrt.FindFlags{SG: true, WC: a.RPTBit, Create: true}
	e, _ := n.mre.Find(a.Source, addr.New(a.Group.Addr()), flags)
	theirs := mrt.AssertMetric{Addr: src, Preference: a.Preference, Metric: a.Metric}
	e.ReceiveAssert(io, v.Index, mrt.AssertMetric{}, theirs)
}

func (n *Node) handleBootstrap(src addr.Addr, bs wire.Bootstrap) {
	zone := n.bsrEng.Zone(addr.FullMulticast(n.family), false)
	b := bsr.Bsm{
		FragmentTag: bs.FragmentTag,
		HashMaskLen: int(bs.HashMaskLen),
		BSRPriority: bs.BSRPriority,
		BSRAddr:     bs.BSRAddr,
	}
	for _, gp := range bs.GroupPrefixes {
		bgp := bsr.BsmGroupPrefix{Prefix: gp.Group, ExpectedRPCount: int(gp.RPCount)}
		for _, r := range gp.RPs {
			bgp.Rps = append(bgp.Rps, bsr.BsmRp{Addr: r.Addr, Priority: r.Priority, HoldtimeSeconds: r.HoldtimeSeconds})
		}
		b.GroupPrefixes = append(b.GroupPrefixes, bgp)
	}

	result, err := n.bsrEng.ReceiveBsm(zone, b, func(r bsr.Rp) {
		n.tasks.Enqueue(mrt.Task{Kind: mrt.TaskRPChanged})
	})
	if err != nil {
		n.log.WithError(err).Debug("rejecting malformed or unauthorized bootstrap", "src", src.String())
		return
	}
	if result.ForwardNeeded() {
		buf := wire.EncodeBootstrap(bs)
		for _, vv := range n.vifs.All() {
			if vv.Active() {
				n.send("bootstrap", buf, allPIMRouters(n.family), vv.Index)
			}
		}
	}
	n.tasks.Enqueue(mrt.Task{Kind: mrt.TaskRPChanged})
}

func (n *Node) handleCandRPAdv(adv wire.CandRPAdv) {
	n.bsrEng.ReceiveCandRPAdv(bsr.CandRPAdvertisement{
		RPAddr:          adv.RPAddr,
		Priority:        adv.Priority,
		HoldtimeSeconds: adv.HoldtimeSeconds,
		Groups:          adv.Groups,
	})
}

func (n *Node) handleRegister(src, dst addr.Addr, r wire.Register) {
	if r.Null {
		if err := register.VerifyNullRegisterInner(r.Inner); err != nil {
			n.log.WithError(err).Debug("dropping Null-Register with invalid inner header")
			return
		}
	}

	group, innerSrc, ok := innerIPv4Addrs(r.Inner)
	var rpEntry *rpFind
	if ok {
		if e, found := n.rps.Find(group); found {
			rpEntry = &rpFind{addr: e.RPAddr}
		}
	}
	iAmRP := rpEntry != nil && rpEntry.addr == dst

	var mre *mrt.Entry
	st := register.SGState{SGRptOlistEmpty: true}
	if ok {
		mre, _ = n.mre.Find(innerSrc, group, mrt.FindFlags{SG: true, Create: true})
		n.recomputeRPF(mre)
		st = register.SGState{SPTbit: mre.SPTbit, SGRptOlistEmpty: mre.Joins().None()}
	}

	d, err := register.ReceiveRegister(dst, dst, iAmRP, st)
	if err != nil {
		n.log.WithError(err).Debug("rejecting Register", "src", src.String())
	}
	if mre != nil {
		if d.SetRPKeepalive {
			mre.IsKATSetToRPKeepalive = true
		} else if d.InstallSGRpt {
			mre.IsKATSetToRPKeepalive = false
		}
		if d.InstallSGRpt || d.SetRPKeepalive {
			mre.StartKeepalive(n.clock, n.onKeepaliveExpire(mre))
		}
		if d.InstallSGRpt {
			n.installRegisterMFC(mre)
		}
	}
	if d.SendStop && ok {
		maskLen := 32
		if n.family == addr.V6 {
			maskLen = 128
		}
		stop := wire.EncodeRegisterStop(wire.RegisterStop{Source: innerSrc, Group: addr.NewPrefix(group, maskLen)})
		n.send("register_stop", stop, src, 0)
	}
}

// installRegisterMFC ensures the kernel decapsulates and forwards (S,G)
// traffic arriving over the Register tunnel (spec §4.10): an MFC entry
// whose iif is the PIM-Register vif rather than the real RPF interface,
// olist approximated as e.Joins() the same way projectMFC is.
func (n *Node) installRegisterMFC(e *mrt.Entry) {
	if n.kern == nil {
		return
	}
	regVif, ok := n.vifs.RegisterVifIndex()
	if !ok {
		n.log.Debug("no PIM-Register vif configured, cannot install register-decap MFC entry", "group", e.Key.Group.String())
		return
	}
	olist := e.Joins()
	var ttls [addr.MaxVifs]uint8
	for _, v := range olist.Slice() {
		ttls[v] = 1
	}
	params := kernelmfc.MFCParams{
		Source: e.Key.Source,
		Group:  e.Key.Group,
		IifVif: regVif,
		Olist:  olist,
		TTLs:   ttls,
	}
	if err := n.kern.AddMFC(params); err != nil {
		n.log.WithError(err).Debug("failed to install register-decap kernel MFC entry")
	}
}

// onKeepaliveExpire recomputes e's RPF/MFC state once its Keepalive Timer
// runs out. Full KAT-expiry semantics (spec §4.9's MRE deletion when no
// other reference holds the entry up) are not modeled at this layer;
// this at least lets the entry's JoinDesired/olist react to the loss of
// Register-driven evidence that traffic is still flowing.
func (n *Node) onKeepaliveExpire(e *mrt.Entry) func() {
	return func() {
		n.recomputeRPF(e)
	}
}

type rpFind struct{ addr addr.Addr }

// innerIPv4Addrs extracts the encapsulated datagram's (source, dest)
// pair from a Register's inner header, used to resolve which RP-table
// entry governs this (S,G) (spec §4.10).
func innerIPv4Addrs(inner []byte) (group, source addr.Addr, ok bool) {
	if len(inner) < 20 || inner[0]>>4 != 4 {
		return addr.Addr{}, addr.Addr{}, false
	}
	src, srcOK := netip.AddrFromSlice(inner[12:16])
	dst, dstOK := netip.AddrFromSlice(inner[16:20])
	if !srcOK || !dstOK {
		return addr.Addr{}, addr.Addr{}, false
	}
	return addr.New(dst), addr.New(src), true
}

func (n *Node) handleRegisterStop(rs wire.RegisterStop) {
	n.tasks.Enqueue(mrt.Task{Kind: mrt.TaskRPChanged, Addr: rs.Source})
}

func (n *Node) send(msgType string, data []byte, dst addr.Addr, ifIndex int) {
	if err := n.conn.WriteTo(data, dst, ifIndex); err != nil {
		n.log.WithError(err).Warn("failed to send PIM message", "dst", dst.String())
		return
	}
	if n.metrics != nil {
		n.metrics.PacketsSent.WithLabelValues(msgType).Inc()
	}
}

func allPIMRouters(f addr.Family) addr.Addr {
	if f == addr.V6 {
		return addr.MustParse("ff02::d")
	}
	return addr.MustParse("224.0.0.13")
}

// registerTaskHandlers wires the task engine's dispatch table; handlers
// live alongside the Node since they need access to vifs, neighbors, and
// the RP table to recompute derived MRE state (spec §4.4).
func (n *Node) registerTaskHandlers() {
	n.tasks.OnTask(mrt.TaskIAmDR, func(eng *mrt.Engine, t mrt.Task) {
		n.log.Debug("DR election changed", "vif", t.Vif)
	})
	n.tasks.OnTask(mrt.TaskPimNbrChanged, func(eng *mrt.Engine, t mrt.Task) {
		if table, ok := n.nbrs[t.Vif]; ok {
			table.ElectDR()
		}
		for _, e := range n.mre.All() {
			n.recomputeRPF(e)
		}
	})
	n.tasks.OnTask(mrt.TaskRPChanged, func(eng *mrt.Engine, t mrt.Task) {
		n.log.Debug("RP set changed")
		for _, e := range n.mre.All() {
			n.recomputeRPF(e)
		}
	})
	n.tasks.OnTask(mrt.TaskMribChanged, func(eng *mrt.Engine, t mrt.Task) {
		for _, e := range n.mre.All() {
			n.recomputeRPF(e)
		}
	})
	n.tasks.OnTask(mrt.TaskDeletePimMfc, func(eng *mrt.Engine, t mrt.Task) {
		if n.kern == nil {
			return
		}
		if err := n.kern.DelMFC(t.Key.Source, t.Key.Group); err != nil {
			n.log.WithError(err).Debug("failed to remove kernel MFC entry")
		}
	})
}
