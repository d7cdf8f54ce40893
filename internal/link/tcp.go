package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"

	"runway-arbiter/internal/logging"
	"runway-arbiter/internal/tower"
)

type ListenerConfig struct {
	Addr        string
	WordsPerSec float64
	Burst       int
	Outbox      int
}

// Listener accepts TCP clients and serves each as its own Link.
type Listener struct {
	cfg   ListenerConfig
	tower *tower.Tower
	log   *logging.Logger
	ln    net.Listener

	mu    sync.Mutex
	links map[*Link]struct{}
	wg    sync.WaitGroup
}

// Listen binds cfg.Addr. Call Run to start accepting.
func Listen(cfg ListenerConfig, tw *tower.Tower, log *logging.Logger) (*Listener, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("tcp listen addr is required")
	}
	if tw == nil {
		return nil, fmt.Errorf("tcp tower is nil")
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return &Listener{cfg: cfg, tower: tw, log: log, ln: ln, links: make(map[*Link]struct{})}, nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Run accepts clients until ctx is done, then closes every connection and
// waits for them to finish.
func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()
	defer l.wg.Wait()

	l.log.Info("tcp link listening", slog.String("addr", l.ln.Addr().String()))
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		lk, err := New(Config{
			Name:        "tcp:" + conn.RemoteAddr().String(),
			Outbox:      l.cfg.Outbox,
			WordsPerSec: l.cfg.WordsPerSec,
			Burst:       l.cfg.Burst,
		}, l.tower, l.log)
		if err != nil {
			_ = conn.Close()
			return err
		}
		l.track(lk, true)
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer l.track(lk, false)
			if err := lk.Serve(ctx, conn); err != nil {
				l.log.Warn("tcp client dropped", slog.String("link", lk.Name()), slog.Any("err", err))
				return
			}
			l.log.Debugf("tcp client %s closed", lk.Name())
		}()
	}
}

func (l *Listener) Close() error { return l.ln.Close() }

func (l *Listener) track(lk *Link, add bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if add {
		l.links[lk] = struct{}{}
	} else {
		delete(l.links, lk)
	}
}

// Snapshot lists the connected clients sorted by name.
func (l *Listener) Snapshot() []Snapshot {
	l.mu.Lock()
	out := make([]Snapshot, 0, len(l.links))
	for lk := range l.links {
		out = append(out, lk.Snapshot())
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
