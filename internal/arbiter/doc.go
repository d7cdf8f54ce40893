// Package arbiter is the runway arbitration engine.
//
// An Arbiter owns the identity pool, both runways, the takeoff and landing
// admission queues and the emergency record. It processes one command word at
// a time and returns every reply that word caused, direct reply first. It does
// no locking of its own; callers serialize access (see internal/tower).
package arbiter
