package journal

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"runway-arbiter/internal/tower"
	"runway-arbiter/internal/word"
)

// Log format: line-oriented text.
//
//   - Blank lines and lines starting with '#' are ignored.
//   - "START" resets the time origin.
//   - "RESET" marks an arbiter reset.
//   - Data lines are <t_ns>,<dir>,<hex> where t_ns is nanoseconds since START,
//     dir is "rx" (inbound) or "tx" (reply) and hex is the 2-byte framed word.
//
// Every rx line is followed by the tx lines it caused, in reply order.

type Kind int

const (
	KindStart Kind = iota
	KindReset
	KindRx
	KindTx
)

type Record struct {
	At   time.Duration
	Kind Kind
	Word word.Word
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch line {
		case "START":
			recs = append(recs, Record{Kind: KindStart})
			continue
		case "RESET":
			var at time.Duration
			if n := len(recs); n > 0 {
				at = recs[n-1].At
			}
			recs = append(recs, Record{At: at, Kind: KindReset})
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("journal line %d: want <t_ns>,<dir>,<hex>: %q", lineNo, line)
		}
		tsNs, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("journal line %d: timestamp: %w", lineNo, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("journal line %d: negative timestamp %d", lineNo, tsNs)
		}

		var kind Kind
		switch strings.TrimSpace(parts[1]) {
		case "rx":
			kind = KindRx
		case "tx":
			kind = KindTx
		default:
			return nil, fmt.Errorf("journal line %d: unknown direction %q", lineNo, parts[1])
		}

		b, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(parts[2]), " ", ""))
		if err != nil {
			return nil, fmt.Errorf("journal line %d: hex: %w", lineNo, err)
		}
		if len(b) != word.FrameLen {
			return nil, fmt.Errorf("journal line %d: want %d bytes, got %d", lineNo, word.FrameLen, len(b))
		}
		w, err := word.Decode(uint16(b[0])<<8 | uint16(b[1]))
		if err != nil {
			return nil, fmt.Errorf("journal line %d: %w", lineNo, err)
		}
		recs = append(recs, Record{At: time.Duration(tsNs), Kind: kind, Word: w})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Compressed reports whether path names a zstd-compressed journal.
func Compressed(path string) bool { return strings.HasSuffix(path, ".zst") }

// Load reads a journal file, decompressing it when the name ends in ".zst".
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !Compressed(path) {
		return NewReader(f).ReadAll()
	}
	zr, err := zstd.NewReader(bufio.NewReader(f), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("journal %s: %w", path, err)
	}
	defer zr.Close()
	return NewReader(zr).ReadAll()
}

// Writer appends exchanges to a journal file. It is safe for concurrent use
// and implements tower.Subscriber.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	zw     *zstd.Encoder
	w      *bufio.Writer
	start  time.Time
	closed bool
	err    error
}

// CreateWriter truncates path and starts a new journal. Paths ending in
// ".zst" are written zstd-compressed.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	ww := &Writer{f: f, start: time.Now()}
	var dst io.Writer = f
	if Compressed(path) {
		zw, err := zstd.NewWriter(f, zstd.WithEncoderConcurrency(1))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("journal %s: %w", path, err)
		}
		ww.zw = zw
		dst = zw
	}
	ww.w = bufio.NewWriterSize(dst, 16*1024)
	if _, err := ww.w.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return ww, nil
}

func (ww *Writer) WriteExchange(ex tower.Exchange) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("journal writer is closed")
	}
	if ex.Source == tower.SourceReset {
		_, err := ww.w.WriteString("RESET\n")
		return err
	}
	d := ex.At.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	if err := ww.line(d, "rx", ex.In); err != nil {
		return err
	}
	for _, r := range ex.Replies {
		if err := ww.line(d, "tx", r); err != nil {
			return err
		}
	}
	return nil
}

func (ww *Writer) line(d time.Duration, dir string, w word.Word) error {
	_, err := fmt.Fprintf(ww.w, "%d,%s,%s\n", d.Nanoseconds(), dir, hex.EncodeToString(word.Append(nil, w)))
	return err
}

// Deliver records ex. The first write error is kept and reported by Err.
func (ww *Writer) Deliver(ex tower.Exchange) {
	ww.keep(ww.WriteExchange(ex))
}

func (ww *Writer) Err() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	return ww.err
}

func (ww *Writer) Flush() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	if err := ww.w.Flush(); err != nil {
		return err
	}
	if ww.zw != nil {
		return ww.zw.Flush()
	}
	return nil
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	err := ww.w.Flush()
	if ww.zw != nil {
		if zerr := ww.zw.Close(); err == nil {
			err = zerr
		}
	}
	if ferr := ww.f.Close(); err == nil {
		err = ferr
	}
	return err
}

// FlushEvery flushes the buffered journal every interval until ctx is done.
// Flush failures are kept for Err; recording never stops the controller.
func (ww *Writer) FlushEvery(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			ww.keep(ww.Flush())
			return nil
		case <-t.C:
			ww.keep(ww.Flush())
		}
	}
}

func (ww *Writer) keep(err error) {
	if err == nil {
		return
	}
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.err == nil {
		ww.err = err
	}
}
