package lamps

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"runway-arbiter/internal/tower"
	"runway-arbiter/internal/word"
)

type fakeLamp struct {
	mu     sync.Mutex
	on     bool
	sets   int
	closed bool
	err    error
}

func (l *fakeLamp) Set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sets++
	if l.err != nil {
		return l.err
	}
	l.on = on
	return nil
}

func (l *fakeLamp) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = false
	l.closed = true
	return nil
}

func (l *fakeLamp) state() (on, closed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on, l.closed
}

func withFakeLamps(t *testing.T) map[int]*fakeLamp {
	t.Helper()
	lamps := make(map[int]*fakeLamp)
	old := openLampFn
	openLampFn = func(pin int) (lampDriver, error) {
		l := &fakeLamp{}
		lamps[pin] = l
		return l, nil
	}
	t.Cleanup(func() { openLampFn = old })
	return lamps
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPanel_FollowsRunwaysAndEmergency(t *testing.T) {
	lamps := withFakeLamps(t)
	tw := tower.New(nil)

	emergencyPin := 22
	p, err := Open(Config{RunwayPins: []int{17, 27}, EmergencyPin: &emergencyPin}, tw, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tw.Subscribe(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	tw.Submit("test", word.IdentityRequest())
	tw.Submit("test", word.Request(0, word.Landing))
	waitFor(t, "runway 0 lamp", func() bool { on, _ := lamps[17].state(); return on })
	if on, _ := lamps[27].state(); on {
		t.Fatalf("runway 1 lamp lit with one aircraft")
	}

	tw.Submit("test", word.Emergency(0, true))
	waitFor(t, "emergency lamp", func() bool { on, _ := lamps[22].state(); return on })

	tw.Submit("test", word.Declare(0, word.Landing, 0))
	waitFor(t, "lamps dark", func() bool {
		rw, _ := lamps[17].state()
		em, _ := lamps[22].state()
		return !rw && !em
	})

	snap := p.Snapshot()
	if len(snap.Runways) != 2 || snap.Runways[0] || snap.Emergency {
		t.Fatalf("snapshot=%+v want all dark", snap)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	for pin, l := range lamps {
		if on, closed := l.state(); on || !closed {
			t.Fatalf("pin %d on=%v closed=%v want off and closed", pin, on, closed)
		}
	}
}

func TestPanel_EmergencyPinOptional(t *testing.T) {
	lamps := withFakeLamps(t)
	p, err := Open(Config{RunwayPins: []int{5, 6}}, tower.New(nil), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()
	if len(lamps) != 2 {
		t.Fatalf("opened %d lamps want 2", len(lamps))
	}
}

func TestPanel_EmergencyOnGPIOZero(t *testing.T) {
	lamps := withFakeLamps(t)
	zero := 0
	p, err := Open(Config{RunwayPins: []int{5, 6}, EmergencyPin: &zero}, tower.New(nil), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()
	if _, ok := lamps[0]; !ok || len(lamps) != 3 {
		t.Fatalf("opened pins=%v want 0, 5 and 6", lamps)
	}
}

func TestOpen_Validation(t *testing.T) {
	withFakeLamps(t)
	if _, err := Open(Config{RunwayPins: []int{5}}, tower.New(nil), nil); err == nil {
		t.Fatalf("expected error for one runway pin")
	}
	if _, err := Open(Config{RunwayPins: []int{5, 6}}, nil, nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
}

func TestOpen_ReleasesClaimedLampsOnFailure(t *testing.T) {
	first := &fakeLamp{}
	old := openLampFn
	openLampFn = func(pin int) (lampDriver, error) {
		if pin == 5 {
			return first, nil
		}
		return nil, errors.New("busy")
	}
	t.Cleanup(func() { openLampFn = old })

	if _, err := Open(Config{RunwayPins: []int{5, 6}}, tower.New(nil), nil); err == nil {
		t.Fatalf("expected error")
	}
	if _, closed := first.state(); !closed {
		t.Fatalf("first lamp not released")
	}
}

func TestPanel_RecordsDriverErrors(t *testing.T) {
	lamps := withFakeLamps(t)
	p, err := Open(Config{RunwayPins: []int{5, 6}}, tower.New(nil), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	lamps[6].err = errors.New("line gone")
	p.refresh()
	if got := p.Snapshot().LastError; got != "line gone" {
		t.Fatalf("LastError=%q want %q", got, "line gone")
	}
	lamps[6].err = nil
	p.refresh()
	if got := p.Snapshot().LastError; got != "" {
		t.Fatalf("LastError=%q want empty", got)
	}
}
