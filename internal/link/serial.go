package link

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"runway-arbiter/internal/logging"
	"runway-arbiter/internal/tower"
)

var openSerialFn = func(path string, baud int) (io.ReadWriteCloser, error) {
	f, err := openSerial(path, baud)
	if err != nil {
		return nil, err
	}
	return f, nil
}

type SerialConfig struct {
	Device string
	Baud   int
	// ReconnectDelay is the wait between failed opens or after a read error.
	ReconnectDelay time.Duration
}

// Serial keeps a Link attached to a UART, reopening the device after errors.
type Serial struct {
	cfg  SerialConfig
	link *Link
	log  *logging.Logger
}

func NewSerial(cfg SerialConfig, tw *tower.Tower, log *logging.Logger) (*Serial, error) {
	cfg.Device = strings.TrimSpace(cfg.Device)
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device is required")
	}
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	l, err := New(Config{Name: "serial:" + cfg.Device}, tw, log)
	if err != nil {
		return nil, err
	}
	return &Serial{cfg: cfg, link: l, log: l.log}, nil
}

func (s *Serial) Link() *Link { return s.link }

// Run serves the UART until ctx is done.
func (s *Serial) Run(ctx context.Context) error {
	for {
		f, err := openSerialFn(s.cfg.Device, s.cfg.Baud)
		if err != nil {
			s.link.setState("error", fmt.Sprintf("open %s baud=%d: %v", s.cfg.Device, s.cfg.Baud, err))
			s.log.Warn("serial open failed", slog.String("device", s.cfg.Device), slog.Any("err", err))
		} else {
			s.log.Info("serial link up", slog.String("device", s.cfg.Device), slog.Int("baud", s.cfg.Baud))
			if err := s.link.Serve(ctx, f); err != nil {
				s.log.Warn("serial link lost", slog.Any("err", err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}
