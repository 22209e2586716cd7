// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rp

import (
	"io"
	"net/netip"

	"gopkg.in/yaml.v3"

	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// snapshotEntry is the on-disk shape of one bootstrap-learned RP,
// addresses held as text the way config.go's *Text fields are, since
// addr.Addr/addr.Prefix carry no YAML (un)marshaler of their own.
type snapshotEntry struct {
	RPAddr      string `yaml:"rp_addr"`
	GroupPrefix string `yaml:"group_prefix"`
	Priority    uint8  `yaml:"priority"`
	HashMaskLen int    `yaml:"hash_mask_len"`
}

// Snapshot is the state directory's persisted RP-set: only
// bootstrap-learned entries, so a restarted pimd has a working RP
// mapping immediately rather than forwarding traffic to nobody until
// the next Bootstrap message arrives (install.GetStateDir's purpose).
// Static and AutoRP-sourced entries are re-derived from configuration or
// their own protocol on every start and are deliberately not included.
type Snapshot struct {
	Entries []snapshotEntry `yaml:"entries"`
}

// SaveSnapshot writes every bootstrap-learned entry among entries to w.
func SaveSnapshot(w io.Writer, entries []Entry) error {
	var snap Snapshot
	for _, e := range entries {
		if e.Learned != LearnedBootstrap {
			continue
		}
		snap.Entries = append(snap.Entries, snapshotEntry{
			RPAddr:      e.RPAddr.String(),
			GroupPrefix: e.GroupPrefix.String(),
			Priority:    e.Priority,
			HashMaskLen: e.HashMaskLen,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return pimerr.Errorf(pimerr.KindUnknown, "encode rp-set snapshot: %w", err)
	}
	return enc.Close()
}

// LoadSnapshot reads a Snapshot written by SaveSnapshot and resolves its
// text addresses back into Entry values, ready for Table.AddRP.
func LoadSnapshot(r io.Reader) ([]Entry, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, pimerr.Errorf(pimerr.KindUnknown, "decode rp-set snapshot: %w", err)
	}

	entries := make([]Entry, 0, len(snap.Entries))
	for _, se := range snap.Entries {
		a, err := netip.ParseAddr(se.RPAddr)
		if err != nil {
			return nil, pimerr.Errorf(pimerr.KindUnknown, "rp-set snapshot: invalid rp_addr %q: %w", se.RPAddr, err)
		}
		p, err := netip.ParsePrefix(se.GroupPrefix)
		if err != nil {
			return nil, pimerr.Errorf(pimerr.KindUnknown, "rp-set snapshot: invalid group_prefix %q: %w", se.GroupPrefix, err)
		}
		entries = append(entries, Entry{
			RPAddr:      addr.New(a),
			GroupPrefix: addr.Prefix{Prefix: p},
			Priority:    se.Priority,
			HashMaskLen: se.HashMaskLen,
			Learned:     LearnedBootstrap,
		})
	}
	return entries, nil
}
