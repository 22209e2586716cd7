// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package kernelmfc

import (
	"encoding/binary"

	"pim-sm.dev/pimd/internal/pim/addr"
)

// mif6ctl mirrors struct mif6ctl from linux/mroute6.h: the IPv6 mif
// registration carries an interface index directly rather than an
// encapsulated local/remote address pair.
type mif6ctl struct {
	mifID     uint16
	flags     uint8
	threshold uint8
	ifIndex   uint32
}

const mif6ctlWireSize = 8

func (p *LinuxProvider) addVif6(v VifParams) error {
	var flags uint8
	if v.Flags&VifFlagRegister != 0 {
		flags |= vifFlagRegister
	}
	mc := mif6ctl{
		mifID:     uint16(v.VifIndex),
		flags:     flags,
		threshold: v.Threshold,
		ifIndex:   uint32(v.IfIndex),
	}
	b := make([]byte, mif6ctlWireSize)
	b[0] = byte(mc.mifID)
	b[1] = byte(mc.mifID >> 8)
	b[2] = mc.flags
	b[3] = mc.threshold
	binary.LittleEndian.PutUint32(b[4:8], mc.ifIndex)
	return setsockoptBytes(p.fd, p.solMRT, mrt6AddMif, b)
}

// mf6cctl mirrors struct mf6cctl from linux/mroute6.h.
type mf6cctl struct {
	origin   [16]byte
	mcastgrp [16]byte
	parent   uint16
	ttls     [maxVifs]uint8
}

const mf6cctlWireSize = 32 + 2 + maxVifs

func (p *LinuxProvider) addMFC6(m MFCParams) error {
	b := make([]byte, mf6cctlWireSize)
	src := m.Source.As16()
	grp := m.Group.As16()
	copy(b[0:16], src[:])
	copy(b[16:32], grp[:])
	parent := uint16(m.IifVif)
	b[32] = byte(parent)
	b[33] = byte(parent >> 8)
	copy(b[34:34+maxVifs], m.TTLs[:])
	return setsockoptBytes(p.fd, p.solMRT, mrt6AddMFC, b)
}

func (p *LinuxProvider) delMFC6(source, group addr.Addr) error {
	b := make([]byte, mf6cctlWireSize)
	src := source.As16()
	grp := group.As16()
	copy(b[0:16], src[:])
	copy(b[16:32], grp[:])
	return setsockoptBytes(p.fd, p.solMRT, mrt6DelMFC, b)
}
