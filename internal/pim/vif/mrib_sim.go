// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package vif

import (
	"fmt"

	"pim-sm.dev/pimd/internal/pim/addr"
)

// SimMrib is a scripted, in-memory Mrib for tests and --sim mode: routes
// are installed explicitly rather than discovered from a real kernel
// routing table.
type SimMrib struct {
	routes map[addr.Addr]RPFRoute
}

// NewSimMrib creates an empty SimMrib; tests populate it via SetRoute.
func NewSimMrib() *SimMrib {
	return &SimMrib{routes: make(map[addr.Addr]RPFRoute)}
}

// SetRoute installs the route RPFLookup(dst) should return.
func (m *SimMrib) SetRoute(dst addr.Addr, route RPFRoute) {
	m.routes[dst] = route
}

// RPFLookup returns the route installed via SetRoute, or an error if dst
// has no installed route (modeling an unreachable destination).
func (m *SimMrib) RPFLookup(dst addr.Addr) (RPFRoute, error) {
	r, ok := m.routes[dst]
	if !ok {
		return RPFRoute{}, fmt.Errorf("vif: no simulated route to %s", dst)
	}
	return r, nil
}

func (m *SimMrib) Close() error { return nil }
