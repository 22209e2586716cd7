// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import pimerr "pim-sm.dev/pimd/internal/errors"

// Message is the result of demultiplexing an inbound PIM datagram: the
// common header plus the type-specific decoded body in exactly one of
// the typed fields.
type Message struct {
	Header       Header
	Hello        *Hello
	Register     *Register
	RegisterStop *RegisterStop
	JoinPrune    *JoinPrune
	Bootstrap    *Bootstrap
	Assert       *Assert
	CandRPAdv    *CandRPAdv
}

// Decode parses a raw PIM datagram (after IP header removal) into a
// Message. It verifies the checksum first and rejects the whole message
// on any malformed field — callers must not apply partial state from a
// Message whose Decode call returned an error.
func Decode(buf []byte) (Message, error) {
	hdr, body, err := decodeHeader(buf)
	if err != nil {
		return Message{}, err
	}
	if !VerifyChecksum(buf, hdr.Type) {
		return Message{}, pimerr.Errorf(pimerr.KindMalformed, "bad PIM checksum for %s", hdr.Type)
	}

	msg := Message{Header: hdr}
	switch hdr.Type {
	case TypeHello:
		h, err := DecodeHello(body)
		if err != nil {
			return Message{}, err
		}
		msg.Hello = &h
	case TypeRegister:
		r, err := DecodeRegister(body)
		if err != nil {
			return Message{}, err
		}
		msg.Register = &r
	case TypeRegisterStop:
		rs, err := DecodeRegisterStop(body)
		if err != nil {
			return Message{}, err
		}
		msg.RegisterStop = &rs
	case TypeJoinPrune:
		jp, err := DecodeJoinPrune(body)
		if err != nil {
			return Message{}, err
		}
		msg.JoinPrune = &jp
	case TypeBootstrap:
		bs, err := DecodeBootstrap(body)
		if err != nil {
			return Message{}, err
		}
		msg.Bootstrap = &bs
	case TypeAssert:
		a, err := DecodeAssert(body)
		if err != nil {
			return Message{}, err
		}
		msg.Assert = &a
	case TypeCandRPAdv:
		adv, err := DecodeCandRPAdv(body)
		if err != nil {
			return Message{}, err
		}
		msg.CandRPAdv = &adv
	case TypeGraft, TypeGraftAck:
		// Dense-mode only; PIM-SM never originates or expects these.
		return Message{}, pimerr.Errorf(pimerr.KindMalformed, "%s not supported in sparse mode", hdr.Type)
	default:
		return Message{}, pimerr.Errorf(pimerr.KindMalformed, "unknown PIM message type %d", hdr.Type)
	}
	return msg, nil
}
