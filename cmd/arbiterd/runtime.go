package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"runway-arbiter/internal/config"
	"runway-arbiter/internal/journal"
	"runway-arbiter/internal/lamps"
	"runway-arbiter/internal/link"
	"runway-arbiter/internal/logging"
	"runway-arbiter/internal/tower"
	"runway-arbiter/internal/udp"
	"runway-arbiter/internal/web"
)

// runtime owns every component the daemon starts for one config.
type runtime struct {
	cfg config.Config
	log *logging.Logger

	tower  *tower.Tower
	status *web.Status
	logs   *web.LogBuffer

	serial   *link.Serial
	listener *link.Listener
	monitor  *udp.Monitor
	journal  *journal.Writer
	lamps    *lamps.Panel
}

func newRuntime(cfg config.Config, log *logging.Logger, logs *web.LogBuffer) (*runtime, error) {
	tw := tower.New(log)
	r := &runtime{
		cfg:    cfg,
		log:    log,
		tower:  tw,
		status: web.NewStatus(tw),
		logs:   logs,
	}

	if cfg.Serial.Enable {
		s, err := link.NewSerial(link.SerialConfig{Device: cfg.Serial.Device, Baud: cfg.Serial.Baud}, tw, log)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("serial link: %w", err)
		}
		r.serial = s
	}

	if cfg.TCP.Enable {
		ln, err := link.Listen(link.ListenerConfig{
			Addr:        cfg.TCP.Listen,
			WordsPerSec: cfg.TCP.WordsPerSec,
			Burst:       cfg.TCP.Burst,
			Outbox:      cfg.TCP.Outbox,
		}, tw, log)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("tcp link: %w", err)
		}
		r.listener = ln
	}

	if cfg.Monitor.Enable {
		m, err := udp.NewMonitor(cfg.Monitor.Dest, log)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("udp monitor: %w", err)
		}
		r.monitor = m
		tw.Subscribe(m)
		r.status.AddComponent("monitor", func() any { return m.Snapshot() })
	}

	if cfg.Journal.Record {
		jw, err := journal.CreateWriter(cfg.Journal.Path)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("journal: %w", err)
		}
		r.journal = jw
		tw.Subscribe(jw)
		r.status.AddComponent("journal", func() any {
			st := struct {
				Path      string `json:"path"`
				LastError string `json:"last_error,omitempty"`
			}{Path: cfg.Journal.Path}
			if err := jw.Err(); err != nil {
				st.LastError = err.Error()
			}
			return st
		})
	}

	if cfg.Lamps.Enable {
		p, err := lamps.Open(lamps.Config{RunwayPins: cfg.Lamps.RunwayPins, EmergencyPin: cfg.Lamps.EmergencyPin}, tw, log)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("lamps: %w", err)
		}
		r.lamps = p
		tw.Subscribe(p)
		r.status.AddComponent("lamps", func() any { return p.Snapshot() })
	}

	r.status.AddComponent("links", func() any { return r.linkSnapshots() })
	return r, nil
}

func (r *runtime) linkSnapshots() []link.Snapshot {
	out := make([]link.Snapshot, 0, 4)
	if r.serial != nil {
		out = append(out, r.serial.Link().Snapshot())
	}
	if r.listener != nil {
		out = append(out, r.listener.Snapshot()...)
	}
	return out
}

// Run starts every component and blocks until ctx is done or one of them
// fails. play, when set, drives a recorded journal into the tower.
func (r *runtime) Run(ctx context.Context, play string, speed float64) error {
	g, ctx := errgroup.WithContext(ctx)

	if r.serial != nil {
		g.Go(func() error { return r.serial.Run(ctx) })
	}
	if r.listener != nil {
		g.Go(func() error { return r.listener.Run(ctx) })
	}
	if r.journal != nil {
		g.Go(func() error { return r.journal.FlushEvery(ctx, r.cfg.Journal.FlushInterval) })
	}
	if r.lamps != nil {
		g.Go(func() error { return r.lamps.Run(ctx) })
	}
	if r.cfg.Web.Enable {
		h := web.Handler(r.status, r.tower, r.logs)
		g.Go(func() error {
			r.log.Info("web api listening", slog.String("addr", r.cfg.Web.Listen))
			return web.Serve(ctx, r.cfg.Web.Listen, h)
		})
	}
	if play != "" {
		g.Go(func() error { return r.play(ctx, play, speed) })
	}

	return g.Wait()
}

// play feeds the inbound words of a journal through the tower so every link
// hears the replies, as if the aircraft were on frequency.
func (r *runtime) play(ctx context.Context, path string, speed float64) error {
	recs, err := journal.Load(path)
	if err != nil {
		return fmt.Errorf("play %s: %w", path, err)
	}
	r.log.Infof("playing journal %s at %gx", path, speed)
	err = journal.Play(recs, speed, ctxSleeper{ctx}, func(rec journal.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.Kind == journal.KindReset {
			r.tower.Reset()
			return nil
		}
		r.tower.Submit("journal", rec.Word)
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	if err == nil {
		r.log.Info("journal playback finished", slog.String("path", path))
	}
	return err
}

type ctxSleeper struct{ ctx context.Context }

func (s ctxSleeper) Sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
	case <-t.C:
	}
}

func (r *runtime) Close() {
	if r.lamps != nil {
		r.lamps.Close()
	}
	if r.monitor != nil {
		_ = r.monitor.Close()
	}
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			r.log.Warn("journal close failed", slog.Any("err", err))
		}
	}
	if r.listener != nil {
		_ = r.listener.Close()
	}
}
