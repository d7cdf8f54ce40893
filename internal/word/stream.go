package word

import (
	"encoding/binary"
	"io"
)

// FrameLen is the number of bytes one word occupies on a byte-oriented link.
const FrameLen = 2

// ReadFrom reads one big-endian framed word. Values with any of the upper 7
// bits set fail with ErrWordOverflow; the two bytes are consumed either way so
// the stream stays aligned.
func ReadFrom(r io.Reader) (Word, error) {
	raw, err := ReadRaw(r)
	if err != nil {
		return 0, err
	}
	return Decode(raw)
}

// ReadRaw reads one framed value without validating it.
func ReadRaw(r io.Reader) (uint16, error) {
	var buf [FrameLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// WriteTo writes one framed word.
func WriteTo(w io.Writer, wd Word) error {
	_, err := w.Write(Append(nil, wd))
	return err
}

// Append appends the framed form of wd to b.
func Append(b []byte, wd Word) []byte {
	return binary.BigEndian.AppendUint16(b, uint16(wd&Mask))
}
