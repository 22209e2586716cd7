// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package node wires every PIM subsystem — vifs, neighbors, the RP table,
// admin scopes, BSR, the MRE store, MFC projection, the kernel provider,
// and Register handling — into the single-threaded event loop spec §5
// describes (component J).
package node

import (
	"context"
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/config"
	"pim-sm.dev/pimd/internal/logging"
	"pim-sm.dev/pimd/internal/metrics"
	"pim-sm.dev/pimd/internal/pim/addr"
	"pim-sm.dev/pimd/internal/pim/bsr"
	"pim-sm.dev/pimd/internal/pim/kernelmfc"
	"pim-sm.dev/pimd/internal/pim/mfc"
	"pim-sm.dev/pimd/internal/pim/mrt"
	"pim-sm.dev/pimd/internal/pim/nbr"
	"pim-sm.dev/pimd/internal/pim/rp"
	"pim-sm.dev/pimd/internal/pim/scope"
	"pim-sm.dev/pimd/internal/pim/transport"
	"pim-sm.dev/pimd/internal/pim/vif"
	"pim-sm.dev/pimd/internal/pim/wire"
)

// Status mirrors the teacher's services.ServiceStatus shape so pimd's
// control surface can report Node state the same way every other
// long-running subsystem in the pack does.
type Status struct {
	Name    string
	Running bool
	Error   string
}

// Node is the PIM-SM protocol engine for one address family.
type Node struct {
	family  addr.Family
	localID addr.Addr
	clock   clock.Clock
	log     *logging.Logger
	metrics *metrics.Registry

	vifs  *vif.Manager
	nbrs  map[int]*nbr.Table
	rps   *rp.Table
	scope *scope.Table
	bsrEng *bsr.Engine
	mre   *mrt.Store
	tasks *mrt.Engine
	kern  kernelmfc.Provider
	conn  transport.Conn
	mrib  vif.Mrib

	mfcEntries map[mrt.Key]*mfc.Entry

	running bool
}

// Config bundles the dependencies New needs, letting pimd's main wire a
// real transport.Conn + kernelmfc.LinuxProvider or a SimConn +
// SimProvider pair depending on --sim.
type Config struct {
	Family  addr.Family
	Clock   clock.Clock
	Conn    transport.Conn
	Kernel  kernelmfc.Provider
	LocalID addr.Addr
	Metrics *metrics.Registry
	Mrib    vif.Mrib
}

// New constructs an idle Node; Configure must be called at least once
// before Run to populate vifs, the RP table, and scope zones from cfg.
func New(c Config) *Node {
	n := &Node{
		family:  c.Family,
		localID: c.LocalID,
		clock:   c.Clock,
		log:     logging.WithComponent("pim-node"),
		metrics: c.Metrics,
		vifs:    vif.NewManager(),
		nbrs:    make(map[int]*nbr.Table),
		rps:     rp.New(c.Family),
		scope:   scope.New(),
		bsrEng:  bsr.New(c.Clock, c.LocalID, nil, nil),
		conn:    c.Conn,
		kern:    c.Kernel,
		mrib:    c.Mrib,
	}
	n.mfcEntries = make(map[mrt.Key]*mfc.Entry)
	n.mre = mrt.New(c.Clock)
	n.tasks = mrt.NewEngine(n.mre)
	n.registerTaskHandlers()
	return n
}

func (n *Node) Name() string { return "pim-" + n.family.String() }

// RPSnapshotEntries returns the RP table's current entries, for a caller
// that wants to persist the bootstrap-learned subset across a restart
// (see rp.SaveSnapshot).
func (n *Node) RPSnapshotEntries() []rp.Entry {
	entries := n.rps.Entries()
	out := make([]rp.Entry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out
}

// RestoreRPSnapshot re-adds previously persisted bootstrap-learned RP
// entries (see rp.LoadSnapshot) ahead of the first real Bootstrap
// message, and recomputes RPF state for every existing MRE so the
// restored mapping takes effect immediately.
func (n *Node) RestoreRPSnapshot(entries []rp.Entry) {
	for _, e := range entries {
		n.rps.AddRP(e)
	}
	for _, e := range n.mre.All() {
		n.recomputeRPF(e)
	}
}

// Status reports the Node's current lifecycle state (spec §6.4's control
// surface, shaped like the teacher's services.Service.Status).
func (n *Node) Status() Status {
	return Status{Name: n.Name(), Running: n.running}
}

// Configure applies cfg to the Node: registering vifs, static RPs and
// admin scope zones; cfg's candidate-RP and candidate-BSR settings are
// not applied here. Each call adds
// to the existing tables rather than rebuilding them: it fails on a vif
// index that is already registered, merges admin scopes into the current
// zones, adds or updates static RPs, and removes nothing.
func (n *Node) Configure(cfg *config.Config) (err error) {
	if n.metrics != nil {
		defer func() {
			status := "success"
			if err != nil {
				status = "failure"
			}
			n.metrics.ConfigReload.WithLabelValues(status).Inc()
		}()
	}

	for _, vc := range cfg.Vifs {
		v := vif.New(vc.Index, vc.Name, vc.PrimaryAddr)
		if err := n.vifs.Add(v); err != nil {
			return err
		}
		n.nbrs[v.Index] = nbr.New(n.clock, v.Index, v.PrimaryAddr, v.DRPriority, n.onNeighborExpire(v.Index))
		if n.kern != nil {
			if err := n.kern.AddVif(kernelmfc.VifParams{VifIndex: v.Index, LocalAddr: v.PrimaryAddr}); err != nil {
				return err
			}
		}
		if n.conn != nil {
			if err := n.conn.JoinGroup(v.Index); err != nil {
				return err
			}
		}
	}
	zones := n.scope.Zones()
	for _, zc := range cfg.AdminScopes {
		merged := false
		for i := range zones {
			if zones[i].Prefix == zc.Prefix {
				zones[i].ScopedVifs.Set(zc.VifIndex)
				merged = true
				break
			}
		}
		if !merged {
			var s addr.MifSet
			s.Set(zc.VifIndex)
			zones = append(zones, scope.Zone{Prefix: zc.Prefix, ScopedVifs: s})
		}
	}
	n.scope.SetZones(zones)
	for _, src := range cfg.StaticRPs {
		n.rps.AddRP(rp.Entry{RPAddr: src.RPAddr, GroupPrefix: src.GroupPrefix, Priority: src.Priority, Learned: rp.LearnedStatic})
	}
	return nil
}

// Run is the single select-loop event engine of spec §5: exactly one
// event — a socket read, a task-queue drain, or a timer firing — is
// processed to completion per iteration, satisfying the ordering rule
// that no two mutations of MRE state interleave.
func (n *Node) Run(ctx context.Context) error {
	n.running = true
	defer func() { n.running = false }()

	readCh := make(chan transport.Packet, 1)
	readErrCh := make(chan error, 1)
	go n.readLoop(ctx, readCh, readErrCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrCh:
			return err
		case pkt := <-readCh:
			n.handlePacket(pkt)
			n.tasks.Drain()
			n.sampleMetrics()
		case <-ticker.C:
			n.tasks.Drain()
			n.sampleMetrics()
		}
	}
}

// readLoop feeds packets read off the raw socket into the select loop, so
// the blocking ReadFrom call never competes with Run's single-threaded
// mutation guarantee — it only ever hands off a finished read.
func (n *Node) readLoop(ctx context.Context, out chan<- transport.Packet, errs chan<- error) {
	buf := make([]byte, 65535)
	for {
		pkt, err := n.conn.ReadFrom(buf)
		if err != nil {
			select {
			case errs <- err:
			case <-ctx.Done():
			}
			return
		}
		cp := make([]byte, len(pkt.Data))
		copy(cp, pkt.Data)
		pkt.Data = cp
		select {
		case out <- pkt:
		case <-ctx.Done():
			return
		}
	}
}

func (n *Node) handlePacket(pkt transport.Packet) {
	msg, err := wire.Decode(pkt.Data)
	if err != nil {
		n.log.WithError(err).Debug("dropping malformed PIM packet", "src", pkt.Src.String())
		n.countDropped("malformed")
		return
	}
	v, ok := n.vifs.Get(pkt.IfIndex)
	if !ok {
		n.countDropped("unknown_vif")
		return
	}
	switch {
	case msg.Hello != nil:
		n.countReceived("hello")
		n.handleHello(v, pkt.Src, *msg.Hello)
	case msg.JoinPrune != nil:
		n.countReceived("join_prune")
		n.handleJoinPrune(v, pkt.Src, *msg.JoinPrune)
	case msg.Assert != nil:
		n.countReceived("assert")
		n.handleAssert(v, pkt.Src, *msg.Assert)
	case msg.Bootstrap != nil:
		n.countReceived("bootstrap")
		n.handleBootstrap(pkt.Src, *msg.Bootstrap)
	case msg.CandRPAdv != nil:
		n.countReceived("cand_rp_adv")
		n.handleCandRPAdv(*msg.CandRPAdv)
	case msg.Register != nil:
		n.countReceived("register")
		n.handleRegister(pkt.Src, pkt.Dst, *msg.Register)
	case msg.RegisterStop != nil:
		n.countReceived("register_stop")
		n.handleRegisterStop(*msg.RegisterStop)
	}
}

func (n *Node) countReceived(msgType string) {
	if n.metrics != nil {
		n.metrics.PacketsReceived.WithLabelValues(msgType).Inc()
	}
}

func (n *Node) countDropped(reason string) {
	if n.metrics != nil {
		n.metrics.PacketsDropped.WithLabelValues(reason).Inc()
	}
}

func (n *Node) onNeighborExpire(vifIndex int) func(*nbr.Entry) {
	return func(e *nbr.Entry) {
		n.tasks.Enqueue(mrt.Task{Kind: mrt.TaskPimNbrChanged, Vif: vifIndex, NbrAddr: e.Addr})
	}
}
