// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package vif models the PIM virtual interface table (spec §3.2,
// component I): the bridge between a kernel network interface and the
// per-vif state the rest of the engine indexes by vif-index (MRE olist
// bits, neighbor tables, scope zones).
package vif

import (
	"fmt"

	"pim-sm.dev/pimd/internal/pim/addr"
)

// Flags describe properties of a vif beyond its addressing.
type Flags struct {
	// PimRegister marks the virtual "register encapsulation" vif used to
	// originate and decapsulate Register messages; it carries no Hello
	// traffic and is never a member of a physical olist (spec §4.10).
	PimRegister bool

	// Disabled marks a vif administratively shut down: it still occupies
	// a vif-index but is excluded from every olist and Hello schedule.
	Disabled bool
}

// Vif is one virtual interface: a physical or logical network interface
// plus the PIM-specific configuration bound to it.
type Vif struct {
	Index      int
	Name       string
	PrimaryAddr addr.Addr
	Addrs      []addr.Addr
	Flags      Flags

	HelloPeriod         uint16 // seconds, default 30
	HelloTriggeredDelay uint16 // seconds, default 5
	HoldtimeSeconds     uint16 // default 3.5 * HelloPeriod, rounded
	DRPriority          uint32
	DRPriorityPresent   bool
	PropagationDelayMS  uint16
	OverrideIntervalMS  uint16
	GenID               uint32
}

// DefaultHelloPeriod and friends mirror the RFC 7761 defaults used when a
// vif's configuration doesn't override them (spec §4.3, §6.4).
const (
	DefaultHelloPeriod         = 30
	DefaultHelloTriggeredDelay = 5
	DefaultPropagationDelayMS  = 500
	DefaultOverrideIntervalMS  = 2500
	DefaultDRPriority          = 1
)

// DefaultHoldtime computes the conventional 3.5x multiple of HelloPeriod
// used when a vif doesn't configure an explicit Holdtime.
func DefaultHoldtime(helloPeriod uint16) uint16 {
	return uint16((uint32(helloPeriod)*7 + 1) / 2)
}

// New creates a vif with RFC defaults, ready for config overrides.
func New(index int, name string, primary addr.Addr) *Vif {
	return &Vif{
		Index:               index,
		Name:                name,
		PrimaryAddr:         primary,
		Addrs:               []addr.Addr{primary},
		HelloPeriod:         DefaultHelloPeriod,
		HelloTriggeredDelay: DefaultHelloTriggeredDelay,
		HoldtimeSeconds:     DefaultHoldtime(DefaultHelloPeriod),
		DRPriority:          DefaultDRPriority,
		DRPriorityPresent:   true,
		PropagationDelayMS:  DefaultPropagationDelayMS,
		OverrideIntervalMS:  DefaultOverrideIntervalMS,
	}
}

// NewRegisterVif builds the virtual PIM-Register vif (spec §4.10): it has
// no Hello schedule and is excluded from physical olists by construction.
func NewRegisterVif(index int, name string, primary addr.Addr) *Vif {
	v := New(index, name, primary)
	v.Flags.PimRegister = true
	return v
}

// Active reports whether the vif participates in Hello exchange and olist
// computation.
func (v *Vif) Active() bool {
	return !v.Flags.Disabled && !v.Flags.PimRegister
}

func (v *Vif) String() string {
	return fmt.Sprintf("vif[%d]=%s(%s)", v.Index, v.Name, v.PrimaryAddr)
}

// HasAddr reports whether a is configured on this vif (used for RPF
// neighbor == "directly connected source" checks, spec §4.4).
func (v *Vif) HasAddr(a addr.Addr) bool {
	for _, c := range v.Addrs {
		if c == a {
			return true
		}
	}
	return false
}

// Manager owns the vif table, allocating indices and tracking which are
// in use (spec §3.2's vif-index allocation).
type Manager struct {
	byIndex map[int]*Vif
	byName  map[string]int
	next    int
}

// NewManager creates an empty vif table.
func NewManager() *Manager {
	return &Manager{byIndex: make(map[int]*Vif), byName: make(map[string]int)}
}

// Add registers v under its Index, which must be unique and below
// addr.MaxVifs.
func (m *Manager) Add(v *Vif) error {
	if v.Index < 0 || v.Index >= addr.MaxVifs {
		return fmt.Errorf("vif index %d out of range [0,%d)", v.Index, addr.MaxVifs)
	}
	if _, exists := m.byIndex[v.Index]; exists {
		return fmt.Errorf("vif index %d already in use", v.Index)
	}
	if _, exists := m.byName[v.Name]; exists {
		return fmt.Errorf("vif name %q already in use", v.Name)
	}
	m.byIndex[v.Index] = v
	m.byName[v.Name] = v.Index
	return nil
}

// NextIndex allocates the next unused vif-index at or above the last one
// it handed out, skipping those already reserved (e.g. a pre-registered
// PIM-Register vif). Indices below that point are not handed out again,
// even after Remove frees them.
func (m *Manager) NextIndex() int {
	for {
		if _, used := m.byIndex[m.next]; !used {
			idx := m.next
			m.next++
			return idx
		}
		m.next++
	}
}

// Remove deletes a vif by index.
func (m *Manager) Remove(index int) {
	if v, ok := m.byIndex[index]; ok {
		delete(m.byName, v.Name)
		delete(m.byIndex, index)
	}
}

// Get returns the vif at index, if any.
func (m *Manager) Get(index int) (*Vif, bool) {
	v, ok := m.byIndex[index]
	return v, ok
}

// ByName returns the vif registered under name, if any.
func (m *Manager) ByName(name string) (*Vif, bool) {
	idx, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return m.byIndex[idx], true
}

// All returns every registered vif, in index order.
func (m *Manager) All() []*Vif {
	out := make([]*Vif, 0, len(m.byIndex))
	for _, v := range m.byIndex {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Index < out[j-1].Index; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ActiveSet returns the MifSet of every active (non-disabled,
// non-register) vif, the universe olist computation intersects against.
func (m *Manager) ActiveSet() addr.MifSet {
	var s addr.MifSet
	for _, v := range m.byIndex {
		if v.Active() {
			s.Set(v.Index)
		}
	}
	return s
}

// RegisterVifIndex returns the index of the PIM-Register vif, if one is
// registered.
func (m *Manager) RegisterVifIndex() (int, bool) {
	for _, v := range m.byIndex {
		if v.Flags.PimRegister {
			return v.Index, true
		}
	}
	return 0, false
}
