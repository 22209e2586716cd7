// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package register

import (
	"encoding/binary"
	"testing"

	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
	"pim-sm.dev/pimd/internal/pim/wire"
)

func TestReceiveRegisterRejectsWrongDestination(t *testing.T) {
	rp := addr.MustParse("192.0.2.1")
	other := addr.MustParse("192.0.2.2")
	d, err := ReceiveRegister(other, rp, true, SGState{})
	if err == nil || pimerr.GetKind(err) != pimerr.KindNotAuthorized {
		t.Fatalf("expected NotAuthorized, got %v", err)
	}
	if !d.SendStop {
		t.Fatal("expected Register-Stop on destination mismatch")
	}
}

func TestReceiveRegisterRejectsWhenNotRPForGroup(t *testing.T) {
	rp := addr.MustParse("192.0.2.1")
	d, err := ReceiveRegister(rp, rp, false, SGState{})
	if err == nil || pimerr.GetKind(err) != pimerr.KindNotAuthorized {
		t.Fatalf("expected NotAuthorized, got %v", err)
	}
	if !d.SendStop {
		t.Fatal("expected Register-Stop when not the elected RP")
	}
}

func TestReceiveRegisterStopsAndSetsRPKeepaliveWhenSPTbitSet(t *testing.T) {
	rp := addr.MustParse("192.0.2.1")
	d, err := ReceiveRegister(rp, rp, true, SGState{SPTbit: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.SendStop || !d.SetRPKeepalive || d.InstallSGRpt {
		t.Fatalf("expected Register-Stop + RP keepalive, got %+v", d)
	}
}

func TestReceiveRegisterStopsWhenSGRptOlistEmpty(t *testing.T) {
	rp := addr.MustParse("192.0.2.1")
	d, err := ReceiveRegister(rp, rp, true, SGState{SGRptOlistEmpty: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.SendStop || !d.SetRPKeepalive {
		t.Fatalf("expected Register-Stop + RP keepalive on empty olist, got %+v", d)
	}
}

func TestReceiveRegisterInstallsSGRptWhenForwardingContinues(t *testing.T) {
	rp := addr.MustParse("192.0.2.1")
	d, err := ReceiveRegister(rp, rp, true, SGState{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.SendStop || !d.InstallSGRpt {
		t.Fatalf("expected SG_RPT install without Register-Stop, got %+v", d)
	}
}

func TestReceiveRegisterStopMatchesSourceAndGroup(t *testing.T) {
	s := addr.MustParse("192.0.2.5")
	g := addr.MustParse("239.1.1.1")
	msg := wire.RegisterStop{Source: s, Group: addr.NewPrefix(g, 32)}
	if !ReceiveRegisterStop(s, g, msg) {
		t.Fatal("expected matching (S,G) Register-Stop to be accepted")
	}
	if ReceiveRegisterStop(addr.MustParse("192.0.2.6"), g, msg) {
		t.Fatal("expected Register-Stop for a different source to be rejected")
	}
}

func TestEncapsulateRoundTripsThroughWireCodec(t *testing.T) {
	payload := []byte{0x45, 0x00, 0x00, 0x14}
	buf := Encapsulate(payload, false)
	if !wire.VerifyChecksum(buf, wire.TypeRegister) {
		t.Fatal("expected a valid Register checksum")
	}
	msg, err := wire.Decode(buf)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if msg.Register == nil {
		t.Fatal("expected a decoded Register message")
	}
	if msg.Register.Null {
		t.Fatal("expected Null flag unset for a data Register")
	}
}

func buildValidV4DummyHeader() []byte {
	b := make([]byte, 20)
	b[0] = 0x45 // version 4, IHL 5
	b[9] = 103  // protocol: PIM
	// checksum initially zero; compute and patch ones-complement result.
	sum := internetChecksum(b)
	csum := ^sum
	b[10] = byte(csum >> 8)
	b[11] = byte(csum)
	return b
}

func TestVerifyNullRegisterInnerAcceptsValidV4Header(t *testing.T) {
	if err := VerifyNullRegisterInner(buildValidV4DummyHeader()); err != nil {
		t.Fatalf("expected valid dummy IPv4 header to verify, got %v", err)
	}
}

func TestVerifyNullRegisterInnerRejectsCorruptV4Checksum(t *testing.T) {
	b := buildValidV4DummyHeader()
	b[11] ^= 0xff
	if err := VerifyNullRegisterInner(b); err == nil {
		t.Fatal("expected corrupted checksum to be rejected")
	}
}

func buildValidV6PseudoHeader() []byte {
	b := make([]byte, 42)
	b[0] = 0x60 // version 6
	b[6] = 103  // next header: PIM
	// src/dst (b[8:40]) left zero.

	pseudo := make([]byte, 42)
	copy(pseudo[0:32], b[8:40])
	binary.BigEndian.PutUint32(pseudo[32:36], 0)
	pseudo[39] = b[6]
	sum := internetChecksum(pseudo[:40])
	csum := ^sum
	b[40] = byte(csum >> 8)
	b[41] = byte(csum)
	return b
}

func TestVerifyNullRegisterInnerAcceptsValidV6PseudoHeader(t *testing.T) {
	if err := VerifyNullRegisterInner(buildValidV6PseudoHeader()); err != nil {
		t.Fatalf("expected valid dummy IPv6 pseudo-header to verify, got %v", err)
	}
}

func TestVerifyNullRegisterInnerRejectsCorruptV6Checksum(t *testing.T) {
	b := buildValidV6PseudoHeader()
	b[41] ^= 0xff
	if err := VerifyNullRegisterInner(b); err == nil {
		t.Fatal("expected corrupted IPv6 checksum trailer to be rejected")
	}
}

func TestVerifyNullRegisterInnerRejectsTruncatedHeader(t *testing.T) {
	if err := VerifyNullRegisterInner([]byte{0x45}); err == nil {
		t.Fatal("expected truncated header to be rejected")
	}
}

func TestEncapsulatorEncapsulateNullProducesVerifiableInner(t *testing.T) {
	enc := &Encapsulator{MyAddr: addr.MustParse("192.0.2.9")}
	buf := enc.EncapsulateNull(addr.MustParse("239.1.1.1"))
	msg, err := wire.Decode(buf)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if msg.Register == nil || !msg.Register.Null {
		t.Fatal("expected a Null-Register message")
	}
	if err := VerifyNullRegisterInner(msg.Register.Inner); err != nil {
		t.Fatalf("expected Encapsulator's dummy header to verify, got %v", err)
	}
}

func TestIPv6TrafficClassExtractsRFC2460Field(t *testing.T) {
	// version=6 (0110), traffic class = 0xAB, flow label = 0.
	flow := uint32(6)<<28 | uint32(0xAB)<<20
	if got := ipv6TrafficClass(flow); got != 0xAB {
		t.Fatalf("expected traffic class 0xAB, got 0x%02x", got)
	}
}
