// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bsr

import (
	"time"

	"pim-sm.dev/pimd/internal/pim/addr"
)

// CandRPAdvertisement is a decoded Cand-RP-Adv message relevant to the
// elected BSR's bookkeeping.
type CandRPAdvertisement struct {
	RPAddr          addr.Addr
	Priority        uint8
	HoldtimeSeconds uint16
	Groups          []addr.Prefix // empty means "all groups" (spec §3.7/4.8)
}

// ReceiveCandRPAdv processes an advertisement on the elected BSR: it
// restarts the advertising RP's Cand-RP Expiry Timer and, when the RP is
// new or its priority/holdtime changed, forces an immediate re-flood by
// expiring the zone's Bootstrap Timer (spec §4.8).
func (e *Engine) ReceiveCandRPAdv(adv CandRPAdvertisement) {
	groups := adv.Groups
	if len(groups) == 0 {
		groups = []addr.Prefix{addr.FullMulticast(addr.V4)}
	}

	changed := false
	for _, g := range groups {
		z := e.zoneForGroup(g)
		gp, ok := z.FindGroupPrefix(g)
		if !ok {
			gp = &GroupPrefix{Prefix: g, ExpectedRPCount: 1}
			z.GroupPrefixes = append(z.GroupPrefixes, gp)
		}
		idx := -1
		for i, r := range gp.Rps {
			if r.Addr == adv.RPAddr {
				idx = i
				break
			}
		}
		if idx < 0 {
			gp.Rps = append(gp.Rps, Rp{Addr: adv.RPAddr, Priority: adv.Priority, HoldtimeSeconds: adv.HoldtimeSeconds})
			e.armRPExpiryTimer(z, &gp.Rps[len(gp.Rps)-1])
			changed = true
		} else {
			if gp.Rps[idx].Priority != adv.Priority || gp.Rps[idx].HoldtimeSeconds != adv.HoldtimeSeconds {
				changed = true
			}
			gp.Rps[idx].Priority = adv.Priority
			gp.Rps[idx].HoldtimeSeconds = adv.HoldtimeSeconds
			e.armRPExpiryTimer(z, &gp.Rps[idx])
		}
	}

	if changed {
		for _, g := range groups {
			z := e.zoneForGroup(g)
			if z.State == ElectedBSR {
				e.armBootstrapTimer(z, 0)
			}
		}
	}
}

func (e *Engine) zoneForGroup(g addr.Prefix) *Zone {
	for _, z := range e.zones {
		if z.IsScopeZone && z.ScopePrefix.ContainsPrefix(g) {
			return z
		}
	}
	return e.Zone(addr.FullMulticast(addr.V4), false)
}

func (e *Engine) armRPExpiryTimer(z *Zone, r *Rp) {
	if r.expiryTimer != nil {
		r.expiryTimer.Stop()
	}
	rpAddr := r.Addr
	r.expiryTimer = e.clock.AfterFunc(time.Duration(r.HoldtimeSeconds)*time.Second, func() {
		e.expireRP(z, rpAddr)
	})
}

func (e *Engine) expireRP(z *Zone, rpAddr addr.Addr) {
	for _, gp := range z.GroupPrefixes {
		for i, r := range gp.Rps {
			if r.Addr == rpAddr {
				gp.Rps = append(gp.Rps[:i:i], gp.Rps[i+1:]...)
				return
			}
		}
	}
}
