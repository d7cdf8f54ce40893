package udp

import (
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"runway-arbiter/internal/tower"
	"runway-arbiter/internal/word"
)

type fakeConn struct {
	writes    [][]byte
	writeErr  error
	closed    bool
	writeHits int
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.writeHits++
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestNewMonitor_DialsResolvedAddr(t *testing.T) {
	var gotNetwork string
	var gotRaddr *net.UDPAddr
	fc := &fakeConn{}

	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		gotNetwork = network
		gotRaddr = raddr
		return fc, nil
	}
	m, err := newMonitor("127.0.0.1:4000", nil, net.ResolveUDPAddr, dial)
	if err != nil {
		t.Fatalf("newMonitor() error: %v", err)
	}
	defer m.Close()

	if gotNetwork != "udp" {
		t.Fatalf("network=%q want %q", gotNetwork, "udp")
	}
	if gotRaddr == nil || gotRaddr.Port != 4000 || !gotRaddr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("raddr=%v want 127.0.0.1:4000", gotRaddr)
	}
}

func TestNewMonitor_ResolveFailure(t *testing.T) {
	resolveErr := errors.New("nope")
	resolve := func(network, address string) (*net.UDPAddr, error) { return nil, resolveErr }
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) { return &fakeConn{}, nil }

	if _, err := newMonitor("bad:addr", nil, resolve, dial); !errors.Is(err, resolveErr) {
		t.Fatalf("err=%v want %v", err, resolveErr)
	}
}

func TestEncode(t *testing.T) {
	ex := tower.Exchange{
		In:      word.Declare(0, word.Takeoff, 1),
		Replies: []word.Word{word.Clear(2, word.Takeoff, 1)},
	}
	want := []byte{DirRx, 0x00, 0x05, DirTx, 0x00, 0x4D}
	if got := Encode(ex); !reflect.DeepEqual(got, want) {
		t.Fatalf("Encode=% x want % x", got, want)
	}
	if got := Encode(tower.Exchange{Source: tower.SourceReset}); !reflect.DeepEqual(got, []byte{DirReset}) {
		t.Fatalf("Encode(reset)=% x want 00", got)
	}
}

func TestMonitor_DeliverCountsErrors(t *testing.T) {
	fc := &fakeConn{writeErr: errors.New("boom")}
	m := &Monitor{dest: "x", conn: fc}

	m.Deliver(tower.Exchange{In: word.IdentityRequest()})
	m.Deliver(tower.Exchange{In: word.IdentityRequest()})
	snap := m.Snapshot()
	if snap.Errors != 2 || snap.Sent != 0 {
		t.Fatalf("snapshot=%+v want errors=2 sent=0", snap)
	}
}

func TestMonitor_Send_EmptyNoWrite(t *testing.T) {
	fc := &fakeConn{}
	m := &Monitor{dest: "x", conn: fc}
	if err := m.Send(nil); err != nil {
		t.Fatalf("Send(nil) error: %v", err)
	}
	if fc.writeHits != 0 {
		t.Fatalf("expected no writes, got %d", fc.writeHits)
	}
}

func TestMonitor_Close_NilConnNoPanic(t *testing.T) {
	m := &Monitor{}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func TestMonitor_SendsExchangesOverLoopback(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer pc.Close()

	m, err := NewMonitor(pc.LocalAddr().String(), nil)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	defer m.Close()

	tw := tower.New(nil)
	tw.Subscribe(m)
	tw.Submit("test", word.IdentityRequest())

	buf := make([]byte, 64)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	want := []byte{DirRx, 0x00, 0x1C, DirTx, 0x00, 0x1C}
	if !reflect.DeepEqual(buf[:n], want) {
		t.Fatalf("datagram=% x want % x", buf[:n], want)
	}
	if m.Snapshot().Sent != 1 {
		t.Fatalf("sent=%d want 1", m.Snapshot().Sent)
	}
}
