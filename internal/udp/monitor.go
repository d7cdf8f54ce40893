// Package udp mirrors arbiter traffic to a UDP listener for passive
// monitoring displays.
//
// Each exchange becomes one datagram: a direction byte followed by the
// 2-byte framed word, for the inbound word and then every reply in order.
// A reset is sent as the single byte DirReset.
package udp

import (
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"runway-arbiter/internal/logging"
	"runway-arbiter/internal/tower"
	"runway-arbiter/internal/word"
)

const (
	DirReset byte = 0x00
	DirRx    byte = 0x01
	DirTx    byte = 0x02
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)

type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

type Monitor struct {
	dest string
	conn udpConn
	log  *logging.Logger

	sent   atomic.Uint64
	errors atomic.Uint64
}

func NewMonitor(dest string, log *logging.Logger) (*Monitor, error) {
	return newMonitor(dest, log, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		// DialUDP selects a suitable local address automatically.
		return net.DialUDP(network, laddr, raddr)
	})
}

func newMonitor(dest string, log *logging.Logger, resolve resolveFunc, dial dialFunc) (*Monitor, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &Monitor{dest: dest, conn: conn, log: log}, nil
}

// Encode builds the datagram for ex.
func Encode(ex tower.Exchange) []byte {
	if ex.Source == tower.SourceReset {
		return []byte{DirReset}
	}
	b := make([]byte, 0, (1+len(ex.Replies))*(1+word.FrameLen))
	b = append(b, DirRx)
	b = word.Append(b, ex.In)
	for _, r := range ex.Replies {
		b = append(b, DirTx)
		b = word.Append(b, r)
	}
	return b
}

// Deliver sends ex. Send failures are counted and logged at debug; the
// monitor never holds up the tower.
func (m *Monitor) Deliver(ex tower.Exchange) {
	if err := m.Send(Encode(ex)); err != nil {
		if m.errors.Add(1) == 1 {
			m.log.Warn("udp monitor send failed", slog.String("dest", m.dest), slog.Any("err", err))
		} else {
			m.log.Debug("udp monitor send failed", slog.String("dest", m.dest), slog.Any("err", err))
		}
		return
	}
	m.sent.Add(1)
}

func (m *Monitor) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := m.conn.Write(payload)
	return err
}

type Snapshot struct {
	Dest   string `json:"dest"`
	Sent   uint64 `json:"sent"`
	Errors uint64 `json:"errors"`
}

func (m *Monitor) Snapshot() Snapshot {
	return Snapshot{Dest: m.dest, Sent: m.sent.Load(), Errors: m.errors.Load()}
}

func (m *Monitor) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}
