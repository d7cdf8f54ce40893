// Package link attaches byte-oriented transports (a UART or TCP clients) to
// the tower. Every link hears every reply, the way every aircraft on the
// shared serial line does.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"runway-arbiter/internal/logging"
	"runway-arbiter/internal/tower"
	"runway-arbiter/internal/word"
)

type Config struct {
	Name string
	// Outbox bounds queued replies. When full, further replies are dropped.
	Outbox int
	// WordsPerSec limits inbound words; zero disables the limit.
	WordsPerSec float64
	Burst       int
}

type Link struct {
	cfg     Config
	tower   *tower.Tower
	log     *logging.Logger
	limiter *rate.Limiter
	outbox  chan word.Word

	mu       sync.RWMutex
	state    string
	lastErr  string
	lastSeen time.Time

	wordsIn   atomic.Uint64
	wordsOut  atomic.Uint64
	dropped   atomic.Uint64
	limited   atomic.Uint64
	malformed atomic.Uint64
}

type Snapshot struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	LastError   string `json:"last_error,omitempty"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	WordsIn     uint64 `json:"words_in"`
	WordsOut    uint64 `json:"words_out"`
	Dropped     uint64 `json:"dropped"`
	Limited     uint64 `json:"limited"`
	Malformed   uint64 `json:"malformed"`
}

func New(cfg Config, tw *tower.Tower, log *logging.Logger) (*Link, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("link name is required")
	}
	if tw == nil {
		return nil, fmt.Errorf("link tower is nil")
	}
	if cfg.Outbox <= 0 {
		cfg.Outbox = 64
	}
	l := &Link{
		cfg:    cfg,
		tower:  tw,
		log:    log.With(slog.String("link", cfg.Name)),
		outbox: make(chan word.Word, cfg.Outbox),
		state:  "stopped",
	}
	if cfg.WordsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(cfg.WordsPerSec), burst)
	}
	return l, nil
}

func (l *Link) Name() string { return l.cfg.Name }

// Deliver queues the exchange's replies for transmission without blocking.
func (l *Link) Deliver(ex tower.Exchange) {
	for _, r := range ex.Replies {
		select {
		case l.outbox <- r:
		default:
			l.dropped.Add(1)
		}
	}
}

// Serve runs the link over rw until ctx is done or either direction fails.
// rw is closed before Serve returns. A clean shutdown returns nil.
func (l *Link) Serve(ctx context.Context, rw io.ReadWriteCloser) error {
	if rw == nil {
		return fmt.Errorf("link %s: transport is nil", l.cfg.Name)
	}
	// Replies queued for a previous transport were never heard; drop them
	// so a reopened device starts with current traffic only.
	l.drainOutbox()
	unsubscribe := l.tower.Subscribe(l)
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.setState("connected", "")
	errc := make(chan error, 2)
	go func() { errc <- l.readLoop(rw) }()
	go func() { errc <- l.writeLoop(runCtx, rw) }()

	err := <-errc
	cancel()
	_ = rw.Close()
	<-errc

	if ctx.Err() != nil || errors.Is(err, io.EOF) {
		l.setState("stopped", "")
		return nil
	}
	l.setState("error", err.Error())
	return err
}

func (l *Link) readLoop(r io.Reader) error {
	for {
		raw, err := word.ReadRaw(r)
		if err != nil {
			return err
		}
		l.wordsIn.Add(1)
		l.touch()
		if l.limiter != nil && !l.limiter.Allow() {
			if l.limited.Add(1) == 1 {
				l.log.Warnf("inbound rate limit exceeded (%g words/s, burst %d), dropping words",
					l.cfg.WordsPerSec, l.limiter.Burst())
			}
			continue
		}
		if _, err := l.tower.SubmitRaw(l.cfg.Name, raw); tower.IsMalformed(err) {
			l.malformed.Add(1)
		}
	}
}

func (l *Link) writeLoop(ctx context.Context, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case wd := <-l.outbox:
			if err := word.WriteTo(w, wd); err != nil {
				return err
			}
			l.wordsOut.Add(1)
		}
	}
}

func (l *Link) drainOutbox() {
	for {
		select {
		case <-l.outbox:
			l.dropped.Add(1)
		default:
			return
		}
	}
}

func (l *Link) touch() {
	l.mu.Lock()
	l.lastSeen = time.Now().UTC()
	l.mu.Unlock()
}

func (l *Link) setState(state string, lastErr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
	// Clear a stale error once the link is healthy again.
	if state == "connected" {
		l.lastErr = ""
		return
	}
	if lastErr != "" {
		l.lastErr = lastErr
	}
}

func (l *Link) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	l.mu.RLock()
	snap := Snapshot{
		Name:      l.cfg.Name,
		State:     l.state,
		LastError: l.lastErr,
	}
	if !l.lastSeen.IsZero() {
		snap.LastSeenUTC = l.lastSeen.Format(time.RFC3339Nano)
	}
	l.mu.RUnlock()
	snap.WordsIn = l.wordsIn.Load()
	snap.WordsOut = l.wordsOut.Load()
	snap.Dropped = l.dropped.Load()
	snap.Limited = l.limited.Load()
	snap.Malformed = l.malformed.Load()
	return snap
}
