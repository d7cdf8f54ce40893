package word

import (
	"errors"
	"fmt"
)

// Word is one 9-bit command or reply on the controller channel.
//
// Layout, most significant first: identity(4) | kind(3) | action(2).
type Word uint16

const (
	Bits = 9
	Mask = Word(1<<Bits - 1)

	idShift   = 5
	kindShift = 2
)

var ErrWordOverflow = errors.New("word: value wider than 9 bits")

// Kind selects how the action bits of a word are interpreted.
type Kind uint8

const (
	KindRequest   Kind = 0b000
	KindDeclare   Kind = 0b001
	KindEmergency Kind = 0b010
	KindClear     Kind = 0b011
	KindHold      Kind = 0b100
	KindSayAgain  Kind = 0b101
	KindDivert    Kind = 0b110
	KindIdentity  Kind = 0b111
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "REQUEST"
	case KindDeclare:
		return "DECLARE"
	case KindEmergency:
		return "EMERGENCY"
	case KindClear:
		return "CLEAR"
	case KindHold:
		return "HOLD"
	case KindSayAgain:
		return "SAY_AGAIN"
	case KindDivert:
		return "DIVERT"
	case KindIdentity:
		return "IDENTITY"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// Op is the maneuver an aircraft asks for. It is carried in action bit 1.
type Op uint8

const (
	Takeoff Op = 0
	Landing Op = 1
)

func (o Op) String() string {
	if o == Landing {
		return "landing"
	}
	return "takeoff"
}

const (
	actionEmergencyDeclare = 0b01
	actionIdentityFull     = 0b11
)

// Make packs the three fields. Out-of-range fields are masked.
func Make(id uint8, kind Kind, action uint8) Word {
	return Word(id&0xF)<<idShift | Word(kind&0x7)<<kindShift | Word(action&0x3)
}

// Decode validates a raw value read from a transport.
func Decode(raw uint16) (Word, error) {
	if Word(raw)&^Mask != 0 {
		return 0, fmt.Errorf("%w: 0x%03x", ErrWordOverflow, raw)
	}
	return Word(raw), nil
}

func (w Word) ID() uint8     { return uint8(w>>idShift) & 0xF }
func (w Word) Kind() Kind    { return Kind(w>>kindShift) & 0x7 }
func (w Word) Action() uint8 { return uint8(w) & 0x3 }

// Op reads action bit 1 (REQUEST, DECLARE, CLEAR).
func (w Word) Op() Op { return Op(w.Action()>>1) & 1 }

// Slot reads action bit 0 (DECLARE, CLEAR).
func (w Word) Slot() int { return int(w.Action() & 1) }

// EmergencyDeclare reports whether an EMERGENCY word declares (true) or resolves.
func (w Word) EmergencyDeclare() bool { return w.Action()&actionEmergencyDeclare != 0 }

// Full reports whether an IDENTITY reply means the airspace is full.
func (w Word) Full() bool { return w.Kind() == KindIdentity && w.Action() == actionIdentityFull }

func (w Word) String() string {
	id := w.ID()
	switch w.Kind() {
	case KindRequest:
		return fmt.Sprintf("%02d REQUEST %s", id, w.Op())
	case KindDeclare:
		return fmt.Sprintf("%02d DECLARE %s runway %d", id, w.Op(), w.Slot())
	case KindClear:
		return fmt.Sprintf("%02d CLEAR %s runway %d", id, w.Op(), w.Slot())
	case KindEmergency:
		if w.EmergencyDeclare() {
			return fmt.Sprintf("%02d EMERGENCY declare", id)
		}
		return fmt.Sprintf("%02d EMERGENCY resolve", id)
	case KindIdentity:
		if w.Full() {
			return "IDENTITY airspace full"
		}
		return fmt.Sprintf("%02d IDENTITY", id)
	default:
		return fmt.Sprintf("%02d %s", id, w.Kind())
	}
}

func Request(id uint8, op Op) Word { return Make(id, KindRequest, uint8(op)<<1) }

func Declare(id uint8, op Op, slot int) Word {
	return Make(id, KindDeclare, uint8(op)<<1|uint8(slot&1))
}

func Emergency(id uint8, declare bool) Word {
	var a uint8
	if declare {
		a = actionEmergencyDeclare
	}
	return Make(id, KindEmergency, a)
}

// IdentityRequest is what a new aircraft sends; the identity field is ignored.
func IdentityRequest() Word { return Make(0, KindIdentity, 0) }

func Clear(id uint8, op Op, slot int) Word {
	return Make(id, KindClear, uint8(op)<<1|uint8(slot&1))
}

func Hold(id uint8) Word     { return Make(id, KindHold, 0) }
func Divert(id uint8) Word   { return Make(id, KindDivert, 0) }
func SayAgain(id uint8) Word { return Make(id, KindSayAgain, 0) }

// Assigned is the IDENTITY reply carrying a newly allocated identity.
func Assigned(id uint8) Word { return Make(id, KindIdentity, 0) }

// AirspaceFull is the IDENTITY reply sent when no identity is free.
func AirspaceFull() Word { return Make(0, KindIdentity, actionIdentityFull) }
