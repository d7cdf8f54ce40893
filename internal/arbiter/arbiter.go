package arbiter

import "runway-arbiter/internal/word"

// Arbiter is the complete controller state: identity pool, runways, both
// admission queues and the emergency record. The zero value is the reset
// state. It is not safe for concurrent use.
type Arbiter struct {
	ids       Registry
	runways   runways
	queues    [2]Queue
	emergency emergency
}

// New returns an arbiter in its reset state.
func New() *Arbiter {
	return &Arbiter{}
}

// Reset returns every runway, queue and identity to the power-on state.
func (a *Arbiter) Reset() {
	*a = Arbiter{}
}

// RequestIdentity allocates the lowest free identity. When the airspace is
// full the reply says so and nothing changes.
func (a *Arbiter) RequestIdentity() []word.Word {
	id, ok := a.ids.Allocate()
	if !ok {
		return []word.Word{word.AirspaceFull()}
	}
	return []word.Word{word.Assigned(id)}
}

// Dispatch routes one inbound word and returns its replies: the direct reply
// to the sender first (if any), then unsolicited replies in the order the
// queue operations behind them happened.
//
// Reply-only kinds sent by an aircraft are answered with SAY_AGAIN.
func (a *Arbiter) Dispatch(w word.Word) []word.Word {
	id := w.ID()
	switch w.Kind() {
	case word.KindIdentity:
		return a.RequestIdentity()
	case word.KindRequest:
		return a.Request(id, w.Op())
	case word.KindDeclare:
		return a.Declare(id, w.Op(), w.Slot())
	case word.KindEmergency:
		if w.EmergencyDeclare() {
			return a.DeclareEmergency(id)
		}
		return a.ResolveEmergency(id)
	default:
		return []word.Word{word.SayAgain(id)}
	}
}

// Identities returns the active identity bitmap.
func (a *Arbiter) Identities() IdentitySet { return a.ids.Set() }

// Runway returns a copy of slot's state.
func (a *Arbiter) Runway(slot int) Runway { return a.runways[slot] }

// Waiting returns the queued identities for op, oldest first.
func (a *Arbiter) Waiting(op word.Op) []uint8 { return a.queue(op).Items() }

// Emergency returns the declarer of the active emergency.
func (a *Arbiter) Emergency() (id uint8, active bool) {
	return a.emergency.id, a.emergency.active
}
