package arbiter

import "math/bits"

// MaxAircraft is the size of the identity address space.
const MaxAircraft = 16

// IdentitySet is a presence bitmap: bit i is set while identity i is active.
type IdentitySet uint16

func (s IdentitySet) Has(id uint8) bool { return id < MaxAircraft && s&(1<<id) != 0 }
func (s IdentitySet) Full() bool        { return s == 0xFFFF }
func (s IdentitySet) Empty() bool       { return s == 0 }
func (s IdentitySet) Count() int        { return bits.OnesCount16(uint16(s)) }

// Registry hands out identities lowest-free-slot first.
type Registry struct {
	set IdentitySet
}

// Allocate marks the lowest free identity active. ok is false when every
// identity is in use; the set is left untouched in that case.
func (r *Registry) Allocate() (id uint8, ok bool) {
	if r.set.Full() {
		return 0, false
	}
	id = uint8(bits.TrailingZeros16(^uint16(r.set)))
	r.set |= 1 << id
	return id, true
}

func (r *Registry) Release(id uint8) {
	if id >= MaxAircraft {
		return
	}
	r.set &^= 1 << id
}

func (r *Registry) Active(id uint8) bool { return r.set.Has(id) }

func (r *Registry) Set() IdentitySet { return r.set }
