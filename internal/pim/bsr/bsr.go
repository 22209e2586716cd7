// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package bsr implements the Bootstrap Router election state machine,
// candidate-RP advertisement handling, and BSM fragment reassembly (spec
// §3.7, §4.8, component C).
package bsr

import (
	"fmt"
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// State is the per-zone BSR election state (spec §4.8).
type State int

const (
	NoInfo State = iota
	AcceptAny
	AcceptPreferred
	CandidateBSR
	PendingBSR
	ElectedBSR
)

func (s State) String() string {
	switch s {
	case AcceptAny:
		return "AcceptAny"
	case AcceptPreferred:
		return "AcceptPreferred"
	case CandidateBSR:
		return "CandidateBSR"
	case PendingBSR:
		return "PendingBSR"
	case ElectedBSR:
		return "ElectedBSR"
	default:
		return "NoInfo"
	}
}

// Defaults mirror RFC 5059's recommended constants.
const (
	DefaultBootstrapTimeout = 130 * time.Second
	DefaultBSPeriod         = 60 * time.Second
	DefaultCandRPAdvPeriod  = 60 * time.Second
	MaxRandOverride         = 2500 * time.Millisecond
)

// Rp is one candidate-RP record inside a group-prefix's RP-set.
type Rp struct {
	Addr            addr.Addr
	Priority        uint8
	HoldtimeSeconds uint16
	expiryTimer     clock.Timer
}

// GroupPrefix is one BsrGroupPrefix entry: a group range plus its
// expected RP count and current RP-set.
type GroupPrefix struct {
	Prefix           addr.Prefix
	ExpectedRPCount  int
	Rps              []Rp
}

// rpCount returns the current occupancy, compared against ExpectedRPCount
// during merge validation.
func (g *GroupPrefix) rpCount() int { return len(g.Rps) }

func (g *GroupPrefix) hasRP(a addr.Addr) bool {
	for _, r := range g.Rps {
		if r.Addr == a {
			return true
		}
	}
	return false
}

// Zone is one BsrZone: the elected-BSR state plus the group-prefix RP-set
// for a single scope (spec §3.7). The non-scoped zone uses
// addr.FullMulticast as its Prefix.
type Zone struct {
	ScopePrefix  addr.Prefix
	IsScopeZone  bool

	State       State
	BSRAddr     addr.Addr
	BSRPriority uint8
	HashMaskLen int
	FragmentTag uint16

	IsCandBSR     bool
	CandBSRAddr   addr.Addr
	CandPriority  uint8

	GroupPrefixes []*GroupPrefix

	bsTimer clock.Timer
}

// Preferred reports whether (addr, priority) beats the zone's currently
// elected BSR per spec §4.8: larger priority wins, tiebreak by larger
// address.
func (z *Zone) Preferred(a addr.Addr, priority uint8) bool {
	if z.State == NoInfo || z.State == AcceptAny {
		return true
	}
	if priority != z.BSRPriority {
		return priority > z.BSRPriority
	}
	return z.BSRAddr.Less(a)
}

// FindGroupPrefix returns the GroupPrefix entry exactly matching p, if any.
func (z *Zone) FindGroupPrefix(p addr.Prefix) (*GroupPrefix, bool) {
	for _, gp := range z.GroupPrefixes {
		if gp.Prefix == p {
			return gp, true
		}
	}
	return nil, false
}

// Engine drives one or more Zones: election state transitions, BSM
// origination/forwarding decisions, and candidate-RP advertisement timers.
type Engine struct {
	clock      clock.Clock
	localAddr  addr.Addr
	zones      map[string]*Zone // keyed by ScopePrefix.String()
	onOriginate func(z *Zone)
	onForward   func(z *Zone)

	candRPAdvTimer clock.Timer
}

// New creates a BSR engine for the local router identified by localAddr.
func New(clk clock.Clock, localAddr addr.Addr, onOriginate, onForward func(*Zone)) *Engine {
	return &Engine{
		clock:       clk,
		localAddr:   localAddr,
		zones:       make(map[string]*Zone),
		onOriginate: onOriginate,
		onForward:   onForward,
	}
}

func zoneKey(p addr.Prefix) string { return p.String() }

// Zone returns the zone for scopePrefix, creating it in NoInfo if absent.
func (e *Engine) Zone(scopePrefix addr.Prefix, isScopeZone bool) *Zone {
	key := zoneKey(scopePrefix)
	z, ok := e.zones[key]
	if !ok {
		z = &Zone{ScopePrefix: scopePrefix, IsScopeZone: isScopeZone, State: NoInfo}
		e.zones[key] = z
	}
	return z
}

// Zones returns every tracked zone.
func (e *Engine) Zones() []*Zone {
	out := make([]*Zone, 0, len(e.zones))
	for _, z := range e.zones {
		out = append(out, z)
	}
	return out
}

// StartCandRPAdvertising arms the periodic timer a Candidate-RP uses to
// unicast its Cand-RP-Adv to the elected BSR (spec §4.8). send is called
// immediately and then every DefaultCandRPAdvPeriod until the engine is
// reconfigured.
func (e *Engine) StartCandRPAdvertising(send func()) {
	if send == nil {
		return
	}
	send()
	var arm func()
	arm = func() {
		e.candRPAdvTimer = e.clock.AfterFunc(DefaultCandRPAdvPeriod, func() {
			send()
			arm()
		})
	}
	arm()
}

// SetCandBSR configures the local router as a Cand-BSR for zone z with the
// given address/priority, entering AcceptAny per RFC 5059 §5.2 until a BSM
// is heard.
func (e *Engine) SetCandBSR(z *Zone, candAddr addr.Addr, priority uint8) {
	z.IsCandBSR = true
	z.CandBSRAddr = candAddr
	z.CandPriority = priority
	if z.State == NoInfo {
		z.State = AcceptAny
	}
}

// BsmRp is a decoded BsrRp record from a wire Bootstrap message.
type BsmRp struct {
	Addr            addr.Addr
	Priority        uint8
	HoldtimeSeconds uint16
}

// BsmGroupPrefix is a decoded BsrGroupPrefix from a wire Bootstrap
// message.
type BsmGroupPrefix struct {
	Prefix          addr.Prefix
	ExpectedRPCount int
	Rps             []BsmRp
}

// Bsm is the decoded payload of a received Bootstrap message relevant to
// zone validation and merge.
type Bsm struct {
	BSRAddr       addr.Addr
	BSRPriority   uint8
	HashMaskLen   int
	FragmentTag   uint16
	GroupPrefixes []BsmGroupPrefix
}

// IsConsistent validates a received BSM against spec §4.8's is_consistent
// rule: well-formed BSR address, valid multicast group prefixes, no
// duplicate group prefix, and per-prefix RP-set sums not exceeding
// ExpectedRPCount.
func IsConsistent(b Bsm) error {
	if !b.BSRAddr.IsUnicast() {
		return fmt.Errorf("bsr address %v is not a valid unicast address", b.BSRAddr)
	}
	seen := map[addr.Prefix]bool{}
	for _, gp := range b.GroupPrefixes {
		if !gp.Prefix.IsValid() {
			return fmt.Errorf("malformed group prefix %v", gp.Prefix)
		}
		if seen[gp.Prefix] {
			return fmt.Errorf("duplicate group prefix %v in bootstrap message", gp.Prefix)
		}
		seen[gp.Prefix] = true
		if len(gp.Rps) > gp.ExpectedRPCount {
			return fmt.Errorf("group prefix %v carries %d RPs, expected at most %d", gp.Prefix, len(gp.Rps), gp.ExpectedRPCount)
		}
	}
	return nil
}

// MergeResult reports what ReceiveBsm did, so the caller can drive
// downstream RP-table updates and onExpire migrations.
type MergeResult struct {
	Accepted     bool
	Replaced     bool
	ExpiredRps   []Rp
	Forward      bool
}

// ReceiveBsm processes a validated BSM for the given zone per spec §4.8:
// same fragment_tag as the active zone merges new RPs (rejecting overflow
// or duplicates), while a different tag from the preferred BSR replaces
// the RP-set wholesale, moving the old RPs onto an Expire list where their
// own Cand-RP Expiry Timers continue to run. An accepted BSM that is to be
// relayed also invokes the engine's onForward callback, when one is set.
func (e *Engine) ReceiveBsm(z *Zone, b Bsm, onRPExpire func(Rp)) (res MergeResult, err error) {
	if err := IsConsistent(b); err != nil {
		return MergeResult{}, err
	}
	defer func() {
		if err == nil && res.Forward && e.onForward != nil {
			e.onForward(z)
		}
	}()

	preferred := z.Preferred(b.BSRAddr, b.BSRPriority)
	sameBSR := z.BSRAddr == b.BSRAddr && z.BSRPriority == b.BSRPriority

	switch {
	case z.State == NoInfo || z.State == AcceptAny:
		e.adoptBsr(z, b)
		e.armBootstrapTimer(z, electionTimeout(z.State))
		return MergeResult{Accepted: true, Replaced: true, Forward: true}, nil

	case sameBSR && b.FragmentTag == z.FragmentTag:
		if err := e.mergeRpSet(z, b); err != nil {
			return MergeResult{}, err
		}
		e.armBootstrapTimer(z, DefaultBootstrapTimeout)
		return MergeResult{Accepted: true, Forward: true}, nil

	case preferred:
		expired := e.replaceRpSet(z, b, onRPExpire)
		if z.State == CandidateBSR {
			z.State = PendingBSR
			e.armBootstrapTimer(z, randOverride(z.CandPriority, b.BSRPriority))
		} else if z.State == ElectedBSR {
			z.State = CandidateBSR
			e.armBootstrapTimer(z, DefaultBootstrapTimeout)
		} else {
			e.armBootstrapTimer(z, DefaultBootstrapTimeout)
		}
		return MergeResult{Accepted: true, Replaced: true, ExpiredRps: expired, Forward: true}, nil

	default:
		// Non-preferred BSM from a non-elected source: accept only if we
		// have no elected BSR of our own yet (AcceptPreferred semantics).
		if z.BSRAddr.Zero() {
			e.adoptBsr(z, b)
			e.armBootstrapTimer(z, electionTimeout(z.State))
			return MergeResult{Accepted: true, Replaced: true, Forward: true}, nil
		}
		return MergeResult{Accepted: false}, nil
	}
}

// electionTimeout picks the interval to arm the Bootstrap Timer to right
// after adoptBsr computes a zone's new state: an elected BSR re-arms to
// its periodic origination interval, everyone else arms to the timeout
// for expecting the next BSM before reverting to AcceptAny.
func electionTimeout(s State) time.Duration {
	if s == ElectedBSR {
		return DefaultBSPeriod
	}
	return DefaultBootstrapTimeout
}

func (e *Engine) adoptBsr(z *Zone, b Bsm) {
	z.BSRAddr = b.BSRAddr
	z.BSRPriority = b.BSRPriority
	z.HashMaskLen = b.HashMaskLen
	z.FragmentTag = b.FragmentTag
	z.GroupPrefixes = fromBsm(b.GroupPrefixes)
	if z.IsCandBSR && z.CandBSRAddr == b.BSRAddr {
		z.State = ElectedBSR
	} else if z.IsCandBSR {
		z.State = CandidateBSR
	} else {
		z.State = AcceptPreferred
	}
}

func fromBsm(in []BsmGroupPrefix) []*GroupPrefix {
	out := make([]*GroupPrefix, 0, len(in))
	for _, gp := range in {
		ngp := &GroupPrefix{Prefix: gp.Prefix, ExpectedRPCount: gp.ExpectedRPCount}
		for _, r := range gp.Rps {
			ngp.Rps = append(ngp.Rps, Rp{Addr: r.Addr, Priority: r.Priority, HoldtimeSeconds: r.HoldtimeSeconds})
		}
		out = append(out, ngp)
	}
	return out
}

func (e *Engine) mergeRpSet(z *Zone, b Bsm) error {
	for _, bgp := range b.GroupPrefixes {
		gp, ok := z.FindGroupPrefix(bgp.Prefix)
		if !ok {
			z.GroupPrefixes = append(z.GroupPrefixes, &GroupPrefix{
				Prefix:          bgp.Prefix,
				ExpectedRPCount: bgp.ExpectedRPCount,
			})
			gp, _ = z.FindGroupPrefix(bgp.Prefix)
		}
		// The most recent fragment's rp_count is the one enforced.
		gp.ExpectedRPCount = bgp.ExpectedRPCount
		for _, r := range bgp.Rps {
			if gp.hasRP(r.Addr) {
				return fmt.Errorf("duplicate rp %v for prefix %v", r.Addr, gp.Prefix)
			}
			if gp.rpCount()+1 > gp.ExpectedRPCount {
				return fmt.Errorf("merge would exceed expected rp count %d for prefix %v", gp.ExpectedRPCount, gp.Prefix)
			}
			gp.Rps = append(gp.Rps, Rp{Addr: r.Addr, Priority: r.Priority, HoldtimeSeconds: r.HoldtimeSeconds})
		}
	}
	return nil
}

func (e *Engine) replaceRpSet(z *Zone, b Bsm, onRPExpire func(Rp)) []Rp {
	var expired []Rp
	for _, gp := range z.GroupPrefixes {
		expired = append(expired, gp.Rps...)
	}
	if onRPExpire != nil {
		for _, r := range expired {
			r := r
			onRPExpire(r)
		}
	}
	e.adoptBsr(z, b)
	return expired
}

func (e *Engine) armBootstrapTimer(z *Zone, d time.Duration) {
	if z.bsTimer != nil {
		z.bsTimer.Stop()
	}
	z.bsTimer = e.clock.AfterFunc(d, func() { e.onBootstrapTimeout(z) })
}

func (e *Engine) onBootstrapTimeout(z *Zone) {
	switch z.State {
	case PendingBSR:
		z.State = ElectedBSR
		z.BSRAddr = z.CandBSRAddr
		z.BSRPriority = z.CandPriority
		if e.onOriginate != nil {
			e.onOriginate(z)
		}
		e.armBootstrapTimer(z, DefaultBSPeriod)
	case ElectedBSR:
		if e.onOriginate != nil {
			e.onOriginate(z)
		}
		e.armBootstrapTimer(z, DefaultBSPeriod)
	case CandidateBSR, AcceptPreferred:
		z.State = AcceptAny
		z.BSRAddr = addr.Addr{}
		z.BSRPriority = 0
	}
}

// randOverride computes the candidate's override delay from the two
// priorities alone: |bsrPriority - localPriority| mod 100, scaled onto
// [0, MaxRandOverride). Addresses do not enter the computation, so two
// candidates with the same priority difference get the same delay.
func randOverride(localPriority, bsrPriority uint8) time.Duration {
	// Deterministic: no random source is used, so the function is pure
	// and reproducible in tests.
	delta := int(bsrPriority) - int(localPriority)
	if delta < 0 {
		delta = -delta
	}
	frac := delta % 100
	base := time.Duration(frac) * MaxRandOverride / 100
	if base > MaxRandOverride {
		base = MaxRandOverride
	}
	return base
}

// ForwardNeeded reports whether a just-processed BSM should be relayed out
// every active, non-scope-boundary vif (caller applies the scope-zone
// boundary check itself via the scope package).
func (m MergeResult) ForwardNeeded() bool { return m.Forward }
