// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package register implements the Register/Register-Stop encapsulation
// path: the source-side DR's WHOLEPKT upcall handler and the RP-side
// decapsulation/validation logic of spec §4.10.
package register

import (
	pimerr "pim-sm.dev/pimd/internal/errors"
	"pim-sm.dev/pimd/internal/pim/addr"
	"pim-sm.dev/pimd/internal/pim/wire"
)

// Encapsulator builds outgoing Register messages for the source-side DR.
// MyAddr fills the dummy inner header's source address on Null-Register
// keepalive probes, since those carry no real packet to borrow one from.
type Encapsulator struct {
	MyAddr addr.Addr
}

// Encapsulate wraps one data packet bound for (S,G) in a Register message.
// Encapsulate never inspects inner for correctness; the caller is
// responsible for stripping any link-layer framing first.
func Encapsulate(inner []byte, null bool) []byte {
	return wire.EncodeRegister(wire.Register{Null: null, Inner: inner})
}

// EncapsulateNull builds the periodic Null-Register keepalive probe (spec
// §4.10): a dummy IPv4/IPv6 header with e.MyAddr as its source and group
// as its destination, carrying no payload, whose checksum satisfies
// VerifyNullRegisterInner on the RP side.
func (e *Encapsulator) EncapsulateNull(group addr.Addr) []byte {
	var inner []byte
	if group.Is4() {
		inner = dummyV4Header(e.MyAddr, group)
	} else {
		inner = dummyV6PseudoHeader(e.MyAddr, group)
	}
	return wire.EncodeRegister(wire.Register{Null: true, Inner: inner})
}

// Decision is the RP's response to an inbound Register message (spec
// §4.10's validation table).
type Decision struct {
	// SendStop, when true, means the caller must unicast a Register-Stop
	// back to the encapsulating DR.
	SendStop bool

	// InstallSGRpt, when true, means the caller must ensure an (S,G,rpt)
	// MFC entry exists with iif = the Register vif so the kernel
	// decapsulates and forwards future Register traffic for (S,G).
	InstallSGRpt bool

	// SetRPKeepalive, when true, means the (S,G) Keepalive Timer must be
	// (re)armed using PIM_RP_KEEPALIVE_PERIOD instead of the shorter
	// default, per §4.10.
	SetRPKeepalive bool
}

// SGState is the subset of (S,G) MRE state the RP-side decision needs.
type SGState struct {
	SPTbit          bool
	SGRptOlistEmpty bool
}

// ReceiveRegister implements the RP-side validation and decision table of
// spec §4.10: dst must equal my_rp_addr and the RP must be the elected RP
// for G, or the Register is rejected outright with a Register-Stop and no
// further state change (spec §7's NotAuthorized handling).
func ReceiveRegister(dst, myRPAddr addr.Addr, iAmRPForGroup bool, st SGState) (Decision, error) {
	if dst != myRPAddr || !iAmRPForGroup {
		return Decision{SendStop: true}, pimerr.New(pimerr.KindNotAuthorized, "register: not the elected RP for this group")
	}

	if st.SPTbit || st.SGRptOlistEmpty {
		return Decision{SendStop: true, SetRPKeepalive: true}, nil
	}
	return Decision{InstallSGRpt: true}, nil
}

// ReceiveRegisterStop reports whether the DR-side Register FSM should
// transition to suppressing Registers for (S,G): the caller arms the
// Register-Suppression Timer (spec §4.10, RFC 4601 4.4.2) on true.
func ReceiveRegisterStop(source, group addr.Addr, msg wire.RegisterStop) bool {
	return msg.Source == source && addr.New(msg.Group.Addr()) == group
}
