package arbiter

import "runway-arbiter/internal/word"

// emergency is the optional emergency record.
type emergency struct {
	active bool
	id     uint8
	op     word.Op
}

// blocks reports whether new op requests must not be queued.
func (e *emergency) blocks(op word.Op) bool { return e.active && e.op == op }

// released clears the record when its declarer leaves the airspace.
func (e *emergency) released(id uint8) {
	if e.active && e.id == id {
		*e = emergency{}
	}
}

// DeclareEmergency records id's emergency and diverts every aircraft waiting
// in the queue for the same operation as id's runway. It is ignored unless id
// holds a runway and no other emergency is active. There is no direct reply;
// the DIVERTs are returned in queue order.
func (a *Arbiter) DeclareEmergency(id uint8) []word.Word {
	if a.emergency.active {
		return nil
	}
	slot, ok := a.runways.holding(id)
	if !ok {
		return nil
	}
	op := a.runways[slot].Op
	a.emergency = emergency{active: true, id: id, op: op}

	evicted := a.queue(op).EvictAll()
	if len(evicted) == 0 {
		return nil
	}
	out := make([]word.Word, 0, len(evicted))
	for _, e := range evicted {
		a.ids.Release(e)
		out = append(out, word.Divert(e))
	}
	return out
}

// ResolveEmergency clears the emergency when id is its declarer. Anything
// else is ignored.
func (a *Arbiter) ResolveEmergency(id uint8) []word.Word {
	if !a.emergency.active || a.emergency.id != id {
		return nil
	}
	a.emergency = emergency{}
	return nil
}
