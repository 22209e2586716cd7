// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config provides the HCL configuration surface for pimd (spec
// §6.4): per-vif PIM parameters, the static and candidate RP sets,
// candidate-BSR participation, admin scope boundaries, and the
// switch-to-SPT policy.
package config

import (
	"net/netip"

	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// Config is the HCL-decoded root document.
type Config struct {
	Family      string              `hcl:"family,optional"`
	Vifs        []VifConfig         `hcl:"vif,block"`
	StaticRPs   []StaticRPConfig    `hcl:"static_rp,block"`
	CandBSR     *CandBSRConfig      `hcl:"cand_bsr,block"`
	CandRPs     []CandRPConfig      `hcl:"cand_rp,block"`
	AdminScopes []ScopeConfig       `hcl:"admin_scope,block"`
	SwitchToSPT SwitchToSPTConfig   `hcl:"switch_to_spt,block"`
}

// VifConfig configures one virtual interface (spec §6.4).
type VifConfig struct {
	Name                     string  `hcl:"name,label"`
	Index                    int     `hcl:"index"`
	PrimaryAddrText          string  `hcl:"address"`
	ProtoVersion             int     `hcl:"proto_version,optional"`
	HelloPeriodSeconds       int     `hcl:"hello_period,optional"`
	HelloHoldtimeSeconds     int     `hcl:"hello_holdtime,optional"`
	HelloTriggeredDelay      int     `hcl:"hello_triggered_delay,optional"`
	DRPriority               uint32  `hcl:"dr_priority,optional"`
	PropagationDelayMS       int     `hcl:"propagation_delay,optional"`
	OverrideIntervalMS       int     `hcl:"override_interval,optional"`
	IsTrackingSupportDisabled bool   `hcl:"is_tracking_support_disabled,optional"`
	AcceptNoHelloNeighbors   bool    `hcl:"accept_nohello_neighbors,optional"`
	JoinPrunePeriodSeconds   int     `hcl:"join_prune_period,optional"`
	AlternativeSubnets       []string `hcl:"alternative_subnet,optional"`

	PrimaryAddr addr.Addr `hcl:"-"`
}

// StaticRPConfig is one administratively-configured RP mapping.
type StaticRPConfig struct {
	GroupPrefixText string `hcl:"group_prefix"`
	RPAddrText      string `hcl:"rp_addr"`
	Priority        uint8  `hcl:"priority,optional"`
	HashMaskLen     int    `hcl:"hash_mask_len,optional"`

	GroupPrefix addr.Prefix `hcl:"-"`
	RPAddr      addr.Addr   `hcl:"-"`
}

// CandBSRConfig configures this router's candidate-BSR participation.
type CandBSRConfig struct {
	Vif         string `hcl:"vif"`
	AddrText    string `hcl:"addr"`
	Priority    uint8  `hcl:"priority,optional"`
	HashMaskLen int    `hcl:"hash_mask_len,optional"`

	Addr addr.Addr `hcl:"-"`
}

// CandRPConfig configures a (zone, group-prefix) candidate-RP advertisement.
type CandRPConfig struct {
	Vif             string `hcl:"vif"`
	AddrText        string `hcl:"addr"`
	GroupPrefixText string `hcl:"group_prefix"`
	Priority        uint8  `hcl:"priority,optional"`
	HoldtimeSeconds int    `hcl:"holdtime,optional"`

	Addr        addr.Addr   `hcl:"-"`
	GroupPrefix addr.Prefix `hcl:"-"`
}

// ScopeConfig binds an admin-scope boundary to a vif (spec §6.4).
type ScopeConfig struct {
	ScopeZonePrefixText string `hcl:"scope_zone_prefix"`
	Vif                 string `hcl:"vif"`

	Prefix   addr.Prefix `hcl:"-"`
	VifIndex int         `hcl:"-"`
}

// SwitchToSPTConfig is the global SPT-switchover policy (spec §4.9).
type SwitchToSPTConfig struct {
	Enabled     bool    `hcl:"enabled,optional"`
	IntervalSec int     `hcl:"interval_sec,optional"`
	Bytes       uint64  `hcl:"bytes,optional"`
}

// Default constants mirror spec §6.5's authoritative values.
const (
	DefaultHelloPeriodSeconds     = 30
	DefaultHelloHoldtimeSeconds   = 105
	DefaultHelloTriggeredDelay    = 5
	DefaultJoinPrunePeriodSeconds = 60
	DefaultOverrideIntervalMS     = 2500
	DefaultDRPriority             = 1
	DefaultCandRPHoldtimeSeconds  = 150
	DefaultBSRHashMaskLen         = 30
)

// applyDefaults fills zero-valued optional fields with spec §6.5 defaults,
// the way a router boots with RFC 7761's recommended constants absent an
// explicit override.
func (c *Config) applyDefaults() {
	for i := range c.Vifs {
		v := &c.Vifs[i]
		if v.HelloPeriodSeconds == 0 {
			v.HelloPeriodSeconds = DefaultHelloPeriodSeconds
		}
		if v.HelloHoldtimeSeconds == 0 {
			v.HelloHoldtimeSeconds = DefaultHelloHoldtimeSeconds
		}
		if v.HelloTriggeredDelay == 0 {
			v.HelloTriggeredDelay = DefaultHelloTriggeredDelay
		}
		if v.DRPriority == 0 {
			v.DRPriority = DefaultDRPriority
		}
		if v.OverrideIntervalMS == 0 {
			v.OverrideIntervalMS = DefaultOverrideIntervalMS
		}
		if v.JoinPrunePeriodSeconds == 0 {
			v.JoinPrunePeriodSeconds = DefaultJoinPrunePeriodSeconds
		}
	}
	for i := range c.CandRPs {
		if c.CandRPs[i].HoldtimeSeconds == 0 {
			c.CandRPs[i].HoldtimeSeconds = DefaultCandRPHoldtimeSeconds
		}
	}
	if c.CandBSR != nil && c.CandBSR.HashMaskLen == 0 {
		c.CandBSR.HashMaskLen = DefaultBSRHashMaskLen
	}
	if c.Family == "" {
		c.Family = "v4"
	}
}

// resolveAddrs parses every *Text field into its typed addr.Addr /
// addr.Prefix counterpart, so downstream code (node.Configure) never
// touches netip directly. Errors here are Configuration-kind per spec §7.
func (c *Config) resolveAddrs() error {
	byName := make(map[string]int, len(c.Vifs))
	for i, v := range c.Vifs {
		a, err := netip.ParseAddr(v.PrimaryAddrText)
		if err != nil {
			return pimerr.Errorf(pimerr.KindConfiguration, "vif %q: invalid address %q: %w", v.Name, v.PrimaryAddrText, err)
		}
		c.Vifs[i].PrimaryAddr = addr.New(a)
		byName[v.Name] = v.Index
	}

	vifIndex := func(name string) (int, error) {
		idx, ok := byName[name]
		if !ok {
			return 0, pimerr.Errorf(pimerr.KindConfiguration, "reference to unknown vif %q", name)
		}
		return idx, nil
	}

	for i := range c.StaticRPs {
		sr := &c.StaticRPs[i]
		p, err := netip.ParsePrefix(sr.GroupPrefixText)
		if err != nil {
			return pimerr.Errorf(pimerr.KindConfiguration, "static_rp: invalid group_prefix %q: %w", sr.GroupPrefixText, err)
		}
		sr.GroupPrefix = addr.Prefix{Prefix: p}
		a, err := netip.ParseAddr(sr.RPAddrText)
		if err != nil {
			return pimerr.Errorf(pimerr.KindConfiguration, "static_rp: invalid rp_addr %q: %w", sr.RPAddrText, err)
		}
		sr.RPAddr = addr.New(a)
	}

	if c.CandBSR != nil {
		idx, err := vifIndex(c.CandBSR.Vif)
		if err != nil {
			return err
		}
		_ = idx
		a, err := netip.ParseAddr(c.CandBSR.AddrText)
		if err != nil {
			return pimerr.Errorf(pimerr.KindConfiguration, "cand_bsr: invalid addr %q: %w", c.CandBSR.AddrText, err)
		}
		c.CandBSR.Addr = addr.New(a)
	}

	for i := range c.CandRPs {
		cr := &c.CandRPs[i]
		if _, err := vifIndex(cr.Vif); err != nil {
			return err
		}
		a, err := netip.ParseAddr(cr.AddrText)
		if err != nil {
			return pimerr.Errorf(pimerr.KindConfiguration, "cand_rp: invalid addr %q: %w", cr.AddrText, err)
		}
		cr.Addr = addr.New(a)
		p, err := netip.ParsePrefix(cr.GroupPrefixText)
		if err != nil {
			return pimerr.Errorf(pimerr.KindConfiguration, "cand_rp: invalid group_prefix %q: %w", cr.GroupPrefixText, err)
		}
		cr.GroupPrefix = addr.Prefix{Prefix: p}
	}

	for i := range c.AdminScopes {
		sc := &c.AdminScopes[i]
		idx, err := vifIndex(sc.Vif)
		if err != nil {
			return err
		}
		sc.VifIndex = idx
		p, err := netip.ParsePrefix(sc.ScopeZonePrefixText)
		if err != nil {
			return pimerr.Errorf(pimerr.KindConfiguration, "admin_scope: invalid scope_zone_prefix %q: %w", sc.ScopeZonePrefixText, err)
		}
		sc.Prefix = addr.Prefix{Prefix: p}
	}

	return nil
}

// Validate rejects configuration-kind errors at commit time (spec §7.5):
// duplicate vif indices, duplicate cand_rp entries, and an unknown family.
// Overlapping BSR zones are not checked.
func (c *Config) Validate() error {
	seen := make(map[int]string, len(c.Vifs))
	for _, v := range c.Vifs {
		if other, dup := seen[v.Index]; dup {
			return pimerr.Errorf(pimerr.KindConfiguration, "vif index %d used by both %q and %q", v.Index, other, v.Name)
		}
		seen[v.Index] = v.Name
	}

	rpSeen := make(map[string]bool, len(c.CandRPs))
	for _, cr := range c.CandRPs {
		key := cr.Vif + "|" + cr.AddrText + "|" + cr.GroupPrefixText
		if rpSeen[key] {
			return pimerr.Errorf(pimerr.KindConfiguration, "duplicate cand_rp for %s on %s", cr.GroupPrefixText, cr.Vif)
		}
		rpSeen[key] = true
	}

	if c.Family != "" && c.Family != "v4" && c.Family != "v6" {
		return pimerr.Errorf(pimerr.KindConfiguration, "family must be \"v4\" or \"v6\", got %q", c.Family)
	}

	return nil
}
