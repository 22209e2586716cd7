// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"io"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// WriteHCL serializes cfg back into HCL text, one block per vif/static_rp/
// cand_rp/admin_scope, a cand_bsr block when set, and always a
// switch_to_spt block, the way a router's "show running-config" or
// config-migration tool would. Numeric fields are written with their
// defaults applied; addresses and prefixes are written from the *Text
// fields as loaded. WriteHCL is a snapshot of effective configuration
// rather than a format-preserving round trip.
func WriteHCL(cfg *Config, w io.Writer) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	family := cfg.Family
	if family == "" {
		family = "v4"
	}
	body.SetAttributeValue("family", cty.StringVal(family))

	for _, v := range cfg.Vifs {
		block := body.AppendNewBlock("vif", []string{v.Name})
		b := block.Body()
		b.SetAttributeValue("index", cty.NumberIntVal(int64(v.Index)))
		b.SetAttributeValue("address", cty.StringVal(v.PrimaryAddrText))
		if v.ProtoVersion != 0 {
			b.SetAttributeValue("proto_version", cty.NumberIntVal(int64(v.ProtoVersion)))
		}
		b.SetAttributeValue("hello_period", cty.NumberIntVal(int64(v.HelloPeriodSeconds)))
		b.SetAttributeValue("hello_holdtime", cty.NumberIntVal(int64(v.HelloHoldtimeSeconds)))
		b.SetAttributeValue("hello_triggered_delay", cty.NumberIntVal(int64(v.HelloTriggeredDelay)))
		b.SetAttributeValue("dr_priority", cty.NumberIntVal(int64(v.DRPriority)))
		if v.PropagationDelayMS != 0 {
			b.SetAttributeValue("propagation_delay", cty.NumberIntVal(int64(v.PropagationDelayMS)))
		}
		b.SetAttributeValue("override_interval", cty.NumberIntVal(int64(v.OverrideIntervalMS)))
		if v.IsTrackingSupportDisabled {
			b.SetAttributeValue("is_tracking_support_disabled", cty.BoolVal(true))
		}
		if v.AcceptNoHelloNeighbors {
			b.SetAttributeValue("accept_nohello_neighbors", cty.BoolVal(true))
		}
		b.SetAttributeValue("join_prune_period", cty.NumberIntVal(int64(v.JoinPrunePeriodSeconds)))
		if len(v.AlternativeSubnets) > 0 {
			b.SetAttributeValue("alternative_subnet", toCtyStringList(v.AlternativeSubnets))
		}
	}

	for _, sr := range cfg.StaticRPs {
		block := body.AppendNewBlock("static_rp", nil)
		b := block.Body()
		b.SetAttributeValue("rp_addr", cty.StringVal(sr.RPAddrText))
		b.SetAttributeValue("group_prefix", cty.StringVal(sr.GroupPrefixText))
		if sr.Priority != 0 {
			b.SetAttributeValue("priority", cty.NumberIntVal(int64(sr.Priority)))
		}
		if sr.HashMaskLen != 0 {
			b.SetAttributeValue("hash_mask_len", cty.NumberIntVal(int64(sr.HashMaskLen)))
		}
	}

	if cfg.CandBSR != nil {
		block := body.AppendNewBlock("cand_bsr", nil)
		b := block.Body()
		b.SetAttributeValue("vif", cty.StringVal(cfg.CandBSR.Vif))
		b.SetAttributeValue("addr", cty.StringVal(cfg.CandBSR.AddrText))
		if cfg.CandBSR.Priority != 0 {
			b.SetAttributeValue("priority", cty.NumberIntVal(int64(cfg.CandBSR.Priority)))
		}
		b.SetAttributeValue("hash_mask_len", cty.NumberIntVal(int64(cfg.CandBSR.HashMaskLen)))
	}

	for _, cr := range cfg.CandRPs {
		block := body.AppendNewBlock("cand_rp", nil)
		b := block.Body()
		b.SetAttributeValue("vif", cty.StringVal(cr.Vif))
		b.SetAttributeValue("addr", cty.StringVal(cr.AddrText))
		b.SetAttributeValue("group_prefix", cty.StringVal(cr.GroupPrefixText))
		if cr.Priority != 0 {
			b.SetAttributeValue("priority", cty.NumberIntVal(int64(cr.Priority)))
		}
		b.SetAttributeValue("holdtime", cty.NumberIntVal(int64(cr.HoldtimeSeconds)))
	}

	for _, sc := range cfg.AdminScopes {
		block := body.AppendNewBlock("admin_scope", nil)
		b := block.Body()
		b.SetAttributeValue("scope_zone_prefix", cty.StringVal(sc.ScopeZonePrefixText))
		b.SetAttributeValue("vif", cty.StringVal(sc.Vif))
	}

	stBlock := body.AppendNewBlock("switch_to_spt", nil)
	st := stBlock.Body()
	st.SetAttributeValue("enabled", cty.BoolVal(cfg.SwitchToSPT.Enabled))
	if cfg.SwitchToSPT.IntervalSec != 0 {
		st.SetAttributeValue("interval_sec", cty.NumberIntVal(int64(cfg.SwitchToSPT.IntervalSec)))
	}
	if cfg.SwitchToSPT.Bytes != 0 {
		st.SetAttributeValue("bytes", cty.NumberIntVal(int64(cfg.SwitchToSPT.Bytes)))
	}

	_, err := w.Write(f.Bytes())
	return err
}

func toCtyStringList(vals []string) cty.Value {
	if len(vals) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	out := make([]cty.Value, len(vals))
	for i, s := range vals {
		out[i] = cty.StringVal(s)
	}
	return cty.ListVal(out)
}
