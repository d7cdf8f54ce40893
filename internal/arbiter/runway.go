package arbiter

import "runway-arbiter/internal/word"

// NumRunways is the number of physical runways. Both serve either operation.
const NumRunways = 2

// Runway is one runway slot. Owner and Op are meaningful only while Occupied.
type Runway struct {
	Occupied bool
	Owner    uint8
	Op       word.Op
}

type runways [NumRunways]Runway

// free returns the lowest-indexed free slot.
func (r *runways) free() (int, bool) {
	for i := range r {
		if !r[i].Occupied {
			return i, true
		}
	}
	return 0, false
}

// holding returns the slot id currently occupies.
func (r *runways) holding(id uint8) (int, bool) {
	for i := range r {
		if r[i].Occupied && r[i].Owner == id {
			return i, true
		}
	}
	return 0, false
}

func (r *runways) occupy(slot int, id uint8, op word.Op) {
	r[slot] = Runway{Occupied: true, Owner: id, Op: op}
}

// Request grants id a runway for op, queues it, or diverts it.
//
// Requests from identities that are not active, or that already hold a
// runway or a queue position, are answered with SAY_AGAIN and change nothing.
func (a *Arbiter) Request(id uint8, op word.Op) []word.Word {
	if !a.ids.Active(id) || a.busy(id) {
		return []word.Word{word.SayAgain(id)}
	}
	if slot, ok := a.runways.free(); ok {
		a.runways.occupy(slot, id, op)
		return []word.Word{word.Clear(id, op, slot)}
	}
	// The emergency operation's queue stays closed until the emergency is resolved.
	if a.emergency.blocks(op) || a.queue(op).Enqueue(id) != nil {
		a.ids.Release(id)
		return []word.Word{word.Divert(id)}
	}
	return []word.Word{word.Hold(id)}
}

// Declare completes id's maneuver on slot. A declaration that does not match
// the runway's owner and operation is ignored. When the matching queue has a
// waiter, its head is cleared onto the freed slot with an unsolicited CLEAR.
func (a *Arbiter) Declare(id uint8, op word.Op, slot int) []word.Word {
	if slot < 0 || slot >= NumRunways {
		return nil
	}
	rw := a.runways[slot]
	if !rw.Occupied || rw.Owner != id || rw.Op != op {
		return nil
	}
	a.runways[slot] = Runway{}
	a.ids.Release(id)
	a.emergency.released(id)

	next, err := a.queue(op).PopFront()
	if err != nil {
		return nil
	}
	a.runways.occupy(slot, next, op)
	return []word.Word{word.Clear(next, op, slot)}
}

func (a *Arbiter) busy(id uint8) bool {
	if _, ok := a.runways.holding(id); ok {
		return true
	}
	return a.queues[word.Takeoff].Contains(id) || a.queues[word.Landing].Contains(id)
}

func (a *Arbiter) queue(op word.Op) *Queue {
	return &a.queues[op&1]
}
