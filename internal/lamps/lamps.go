// Package lamps mirrors runway occupancy and the emergency state onto GPIO
// indicator lamps.
package lamps

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"runway-arbiter/internal/arbiter"
	"runway-arbiter/internal/logging"
	"runway-arbiter/internal/tower"
)

type Config struct {
	// RunwayPins lists one BCM GPIO per runway, in slot order.
	RunwayPins []int
	// EmergencyPin is lit while an emergency is active. Nil disables it.
	EmergencyPin *int
}

// Source provides the arbiter state the lamps display.
type Source interface {
	Snapshot() arbiter.Snapshot
}

type Snapshot struct {
	Runways      []bool    `json:"runways"`
	Emergency    bool      `json:"emergency"`
	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Panel owns the lamp outputs. Deliver only signals a refresh; Run reads the
// arbiter state and drives the outputs outside the tower lock.
type Panel struct {
	cfg Config
	src Source
	log *logging.Logger

	runways   []lampDriver
	emergency lampDriver

	kick chan struct{}

	mu   sync.Mutex
	snap Snapshot

	closeOnce sync.Once
}

// Open claims every configured output. On failure the outputs already
// claimed are released.
func Open(cfg Config, src Source, log *logging.Logger) (*Panel, error) {
	if src == nil {
		return nil, fmt.Errorf("lamps: source is nil")
	}
	if len(cfg.RunwayPins) != arbiter.NumRunways {
		return nil, fmt.Errorf("lamps: want %d runway pins, got %d", arbiter.NumRunways, len(cfg.RunwayPins))
	}
	p := &Panel{
		cfg:  cfg,
		src:  src,
		log:  log,
		kick: make(chan struct{}, 1),
		snap: Snapshot{Runways: make([]bool, arbiter.NumRunways)},
	}
	for _, pin := range cfg.RunwayPins {
		drv, err := openLampFn(pin)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("runway lamp gpio %d: %w", pin, err)
		}
		p.runways = append(p.runways, drv)
	}
	if cfg.EmergencyPin != nil {
		drv, err := openLampFn(*cfg.EmergencyPin)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("emergency lamp gpio %d: %w", *cfg.EmergencyPin, err)
		}
		p.emergency = drv
	}
	return p, nil
}

func (p *Panel) Deliver(tower.Exchange) {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run refreshes the lamps after every exchange until ctx is done, then
// switches them all off.
func (p *Panel) Run(ctx context.Context) error {
	defer p.Close()
	p.refresh()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.kick:
			p.refresh()
		}
	}
}

func (p *Panel) refresh() {
	st := p.src.Snapshot()
	var firstErr error
	lit := make([]bool, len(p.runways))
	for i, drv := range p.runways {
		lit[i] = st.Runways[i].Occupied
		if err := drv.Set(lit[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	emergency := st.Emergency != nil
	if p.emergency != nil {
		if err := p.emergency.Set(emergency); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Runways = lit
	p.snap.Emergency = emergency
	p.snap.LastUpdateAt = time.Now().UTC()
	if firstErr != nil {
		if p.snap.LastError == "" {
			p.log.Warn("lamp update failed", slog.Any("err", firstErr))
		}
		p.snap.LastError = firstErr.Error()
	} else {
		p.snap.LastError = ""
	}
}

func (p *Panel) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.snap
	snap.Runways = append([]bool(nil), p.snap.Runways...)
	return snap
}

// Close switches every lamp off and releases the outputs.
func (p *Panel) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		for _, drv := range p.runways {
			_ = drv.Close()
		}
		if p.emergency != nil {
			_ = p.emergency.Close()
		}
	})
}
