// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package kernelmfc

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"pim-sm.dev/pimd/internal/pim/addr"
)

// Linux MRT_* setsockopt levels and names (linux/mroute.h, linux/mroute6.h).
// golang.org/x/sys/unix does not export these multicast-routing-specific
// values, so they're reproduced here from the stable kernel UAPI the way
// any userspace mrouted-style daemon would.
const (
	solIP   = 0  // IPPROTO_IP
	solIPv6 = 41 // IPPROTO_IPV6

	mrtInit   = 200
	mrtDone   = 201
	mrtAddVif = 202
	mrtDelVif = 203
	mrtAddMFC = 204
	mrtDelMFC = 205

	mrt6Init   = 200
	mrt6Done   = 201
	mrt6AddMif = 202
	mrt6DelMif = 203
	mrt6AddMFC = 204
	mrt6DelMFC = 205

	vifFlagTunnel   = 0x1
	vifFlagRegister = 0x4

	maxVifs = addr.MaxVifs
)

// LinuxProvider programs the kernel multicast forwarding cache via
// MRT_ADD_VIF/MRT_ADD_MFC setsockopt calls issued against the raw PIM
// socket's file descriptor, per spec §6.2.
type LinuxProvider struct {
	fd     int
	isIPv6 bool
	solMRT int // solIP or solIPv6, selected by family
}

// NewLinuxProvider wraps an already-open raw PIM socket fd (owned by the
// transport package) and issues MRT_INIT to enable kernel multicast
// forwarding on it.
func NewLinuxProvider(fd int, isIPv6 bool) (*LinuxProvider, error) {
	sol := solIP
	init := mrtInit
	if isIPv6 {
		sol = solIPv6
		init = mrt6Init
	}
	if err := unix.SetsockoptInt(fd, sol, init, 1); err != nil {
		return nil, fmt.Errorf("kernelmfc: MRT_INIT: %w", err)
	}
	return &LinuxProvider{fd: fd, isIPv6: isIPv6, solMRT: sol}, nil
}

// vifctl mirrors struct vifctl from linux/mroute.h (IPv4 only; the IPv6
// mif6ctl layout differs and is encoded separately by addVif6 in
// provider_linux_v6.go).
type vifctl struct {
	vifID     uint16
	flags     uint8
	threshold uint8
	rateLimit uint32
	lclAddr   [4]byte
	rmtAddr   [4]byte
	ifIndex   int32
}

func (p *LinuxProvider) AddVif(v VifParams) error {
	if p.isIPv6 {
		return p.addVif6(v)
	}
	var flags uint8
	if v.Flags&VifFlagTunnel != 0 {
		flags |= vifFlagTunnel
	}
	if v.Flags&VifFlagRegister != 0 {
		flags |= vifFlagRegister
	}
	vc := vifctl{
		vifID:     uint16(v.VifIndex),
		flags:     flags,
		threshold: v.Threshold,
		ifIndex:   int32(v.IfIndex),
	}
	copy(vc.lclAddr[:], v.LocalAddr.As4()[:])
	copy(vc.rmtAddr[:], v.RemoteAddr.As4()[:])
	return setsockoptStruct(p.fd, p.solMRT, mrtAddVif, &vc)
}

func (p *LinuxProvider) DelVif(vifIndex int) error {
	if p.isIPv6 {
		return unix.SetsockoptInt(p.fd, p.solMRT, mrt6DelMif, vifIndex)
	}
	return unix.SetsockoptInt(p.fd, p.solMRT, mrtDelVif, vifIndex)
}

// mfcctl mirrors struct mfcctl from linux/mroute.h. pkt/bytes/wrongIf/
// expire are kernel-written counters returned by a getsockopt(MRT_ADD_MFC)
// readback, which this provider doesn't issue; Stats reports zero until
// that readback path is added.
type mfcctl struct {
	origin   [4]byte
	mcastgrp [4]byte
	parent   uint16
	ttls     [maxVifs]uint8
	pkt      uint32
	bytes    uint32
	wrongIf  uint32
	expire   int32
}

func (p *LinuxProvider) AddMFC(m MFCParams) error {
	if p.isIPv6 {
		return p.addMFC6(m)
	}
	mc := mfcctl{parent: uint16(m.IifVif)}
	copy(mc.origin[:], m.Source.As4()[:])
	copy(mc.mcastgrp[:], m.Group.As4()[:])
	mc.ttls = m.TTLs
	return setsockoptStruct(p.fd, p.solMRT, mrtAddMFC, &mc)
}

func (p *LinuxProvider) DelMFC(source, group addr.Addr) error {
	if p.isIPv6 {
		return p.delMFC6(source, group)
	}
	mc := mfcctl{}
	copy(mc.origin[:], source.As4()[:])
	copy(mc.mcastgrp[:], group.As4()[:])
	return setsockoptStruct(p.fd, p.solMRT, mrtDelMFC, &mc)
}

// Stats always reports zero counters: this provider issues no kernel
// counter query. The mfc package's dataflow monitors rely on
// upcall-driven tracking via NoteTraffic instead.
func (p *LinuxProvider) Stats(source, group addr.Addr) (DataflowStats, error) {
	return DataflowStats{}, nil
}

func (p *LinuxProvider) Close() error {
	done := mrtDone
	if p.isIPv6 {
		done = mrt6Done
	}
	if err := unix.SetsockoptInt(p.fd, p.solMRT, done, 1); err != nil {
		return fmt.Errorf("kernelmfc: MRT_DONE: %w", err)
	}
	return nil
}

// Wire sizes for the manually packed layouts below. These match the byte
// offsets writeStruct fills in, not unsafe.Sizeof(the Go struct), since
// Go's native alignment doesn't necessarily match the C ABI the kernel
// expects.
const (
	vifctlWireSize = 20
	mfcctlWireSize = 10 + maxVifs
)

func setsockoptStruct(fd, level, name int, v any) error {
	var size int
	switch v.(type) {
	case *vifctl:
		size = vifctlWireSize
	case *mfcctl:
		size = mfcctlWireSize
	default:
		return fmt.Errorf("kernelmfc: unsupported control struct %T", v)
	}
	b := make([]byte, size)
	writeStruct(b, v)
	return setsockoptBytes(fd, level, name, b)
}

func setsockoptBytes(fd, level, name int, b []byte) error {
	return unix.SetsockoptString(fd, level, name, string(b))
}

// writeStruct is a minimal, field-order-matching encoder for the fixed
// C structs above; avoids pulling in encoding/binary's reflection path
// for two small, stable layouts.
func writeStruct(b []byte, v any) {
	switch s := v.(type) {
	case *vifctl:
		b[0] = byte(s.vifID)
		b[1] = byte(s.vifID >> 8)
		b[2] = s.flags
		b[3] = s.threshold
		binary.LittleEndian.PutUint32(b[4:8], s.rateLimit)
		copy(b[8:12], s.lclAddr[:])
		copy(b[12:16], s.rmtAddr[:])
		binary.LittleEndian.PutUint32(b[16:20], uint32(s.ifIndex))
	case *mfcctl:
		copy(b[0:4], s.origin[:])
		copy(b[4:8], s.mcastgrp[:])
		b[8] = byte(s.parent)
		b[9] = byte(s.parent >> 8)
		copy(b[10:10+maxVifs], s.ttls[:])
	}
}
