package web

import (
	"sort"
	"sync"
	"time"

	"runway-arbiter/internal/arbiter"
	"runway-arbiter/internal/tower"
	"runway-arbiter/internal/word"
)

// Controller is the part of the tower the web API drives.
type Controller interface {
	Snapshot() arbiter.Snapshot
	Stats() tower.Stats
	Reset()
	SubmitRaw(source string, raw uint16) ([]word.Word, error)
}

// Status assembles /api/status from the controller and any registered
// components (links, monitor, lamps, journal).
type Status struct {
	start time.Time
	ctl   Controller

	mu         sync.RWMutex
	components map[string]func() any
}

func NewStatus(ctl Controller) *Status {
	return &Status{
		start:      time.Now().UTC(),
		ctl:        ctl,
		components: make(map[string]func() any),
	}
}

// AddComponent registers a snapshot provider reported under name.
func (s *Status) AddComponent(name string, snapshot func() any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[name] = snapshot
}

type StatusSnapshot struct {
	Service    string           `json:"service"`
	NowUTC     string           `json:"now_utc"`
	UptimeSec  int64            `json:"uptime_sec"`
	Arbiter    arbiter.Snapshot `json:"arbiter"`
	Counters   tower.Stats      `json:"counters"`
	System     SystemSnapshot   `json:"system"`
	Components map[string]any   `json:"components"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	snap := StatusSnapshot{
		Service:    serviceName,
		NowUTC:     nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:  int64(nowUTC.Sub(s.start).Seconds()),
		System:     readSystem(),
		Components: make(map[string]any),
	}
	if s.ctl != nil {
		snap.Arbiter = s.ctl.Snapshot()
		snap.Counters = s.ctl.Stats()
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	for _, name := range names {
		s.mu.RLock()
		fn := s.components[name]
		s.mu.RUnlock()
		snap.Components[name] = fn()
	}
	return snap
}
