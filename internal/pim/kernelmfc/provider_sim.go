// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kernelmfc

import (
	"fmt"
	"sync"

	"pim-sm.dev/pimd/internal/pim/addr"
)

// SimProvider is a stateful in-memory stand-in for the kernel forwarding
// cache, used by tests and pimd's --sim mode. It mirrors the shape a real
// Linux MRT socket would enforce (duplicate vif/MFC rejection, missing-vif
// errors) without touching the OS.
type SimProvider struct {
	mu    sync.Mutex
	vifs  map[int]VifParams
	mfcs  map[mfcKey]MFCParams
	stats map[mfcKey]DataflowStats
}

type mfcKey struct {
	source addr.Addr
	group  addr.Addr
}

// NewSimProvider creates an empty simulated forwarding cache.
func NewSimProvider() *SimProvider {
	return &SimProvider{
		vifs:  make(map[int]VifParams),
		mfcs:  make(map[mfcKey]MFCParams),
		stats: make(map[mfcKey]DataflowStats),
	}
}

func (s *SimProvider) AddVif(p VifParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vifs[p.VifIndex]; exists {
		return fmt.Errorf("kernelmfc: vif %d already registered", p.VifIndex)
	}
	s.vifs[p.VifIndex] = p
	return nil
}

func (s *SimProvider) DelVif(vifIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vifs[vifIndex]; !exists {
		return fmt.Errorf("kernelmfc: vif %d not registered", vifIndex)
	}
	delete(s.vifs, vifIndex)
	return nil
}

func (s *SimProvider) AddMFC(p MFCParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vifs[p.IifVif]; !exists {
		return fmt.Errorf("kernelmfc: iif vif %d not registered", p.IifVif)
	}
	k := mfcKey{p.Source, p.Group}
	s.mfcs[k] = p
	return nil
}

func (s *SimProvider) DelMFC(source, group addr.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := mfcKey{source, group}
	if _, exists := s.mfcs[k]; !exists {
		return fmt.Errorf("kernelmfc: no MFC entry for (%s,%s)", source, group)
	}
	delete(s.mfcs, k)
	delete(s.stats, k)
	return nil
}

func (s *SimProvider) Stats(source, group addr.Addr) (DataflowStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := mfcKey{source, group}
	if _, exists := s.mfcs[k]; !exists {
		return DataflowStats{}, fmt.Errorf("kernelmfc: no MFC entry for (%s,%s)", source, group)
	}
	return s.stats[k], nil
}

// InjectTraffic lets tests simulate the kernel observing n bytes flow
// through an installed (S,G) entry, advancing the counters Stats reports.
func (s *SimProvider) InjectTraffic(source, group addr.Addr, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := mfcKey{source, group}
	if _, exists := s.mfcs[k]; !exists {
		return fmt.Errorf("kernelmfc: no MFC entry for (%s,%s)", source, group)
	}
	st := s.stats[k]
	st.Packets++
	st.Bytes += n
	s.stats[k] = st
	return nil
}

// VifCount returns the number of vifs currently registered, for tests.
func (s *SimProvider) VifCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vifs)
}

// MFCCount returns the number of MFC entries currently installed, for
// tests.
func (s *SimProvider) MFCCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mfcs)
}

func (s *SimProvider) Close() error { return nil }
