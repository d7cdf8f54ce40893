package arbiter

import "runway-arbiter/internal/word"

type RunwaySnapshot struct {
	Slot     int    `json:"slot"`
	Occupied bool   `json:"occupied"`
	Owner    *int   `json:"owner,omitempty"`
	Op       string `json:"op,omitempty"`
}

type EmergencySnapshot struct {
	Declarer int    `json:"declarer"`
	Op       string `json:"op"`
}

// Snapshot is a point-in-time copy of the arbiter state, safe to hand to
// other goroutines.
type Snapshot struct {
	Identities   IdentitySet                `json:"identities"`
	Active       int                        `json:"active"`
	Full         bool                       `json:"full"`
	Runways      [NumRunways]RunwaySnapshot `json:"runways"`
	TakeoffQueue []int                      `json:"takeoff_queue"`
	LandingQueue []int                      `json:"landing_queue"`
	Emergency    *EmergencySnapshot         `json:"emergency,omitempty"`
}

func (a *Arbiter) Snapshot() Snapshot {
	ids := a.ids.Set()
	snap := Snapshot{
		Identities:   ids,
		Active:       ids.Count(),
		Full:         ids.Full(),
		TakeoffQueue: toInts(a.queues[word.Takeoff].Items()),
		LandingQueue: toInts(a.queues[word.Landing].Items()),
	}
	for i, rw := range a.runways {
		rs := RunwaySnapshot{Slot: i, Occupied: rw.Occupied}
		if rw.Occupied {
			owner := int(rw.Owner)
			rs.Owner = &owner
			rs.Op = rw.Op.String()
		}
		snap.Runways[i] = rs
	}
	if a.emergency.active {
		snap.Emergency = &EmergencySnapshot{Declarer: int(a.emergency.id), Op: a.emergency.op.String()}
	}
	return snap
}

func toInts(ids []uint8) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, int(id))
	}
	return out
}
