package fitproto

import (
	"bufio"
	"io"
)

// byteReader is the minimal interface Cursor needs from its source.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// Cursor wraps a byte source and tracks the absolute read position, the way
// the FIT SDK's own reader does, so the main loop can compare position
// against header_size+data_size without a separate byte counter.
type Cursor struct {
	r   byteReader
	pos uint32
}

// NewCursor wraps r. If r does not already implement io.ByteReader (a
// bytes.Reader does; an os.File does not), it is buffered.
func NewCursor(r io.Reader) *Cursor {
	if br, ok := r.(byteReader); ok {
		return &Cursor{r: br}
	}
	return &Cursor{r: bufio.NewReader(r)}
}

// Pos returns the number of bytes consumed so far.
func (c *Cursor) Pos() uint32 { return c.pos }

// ReadByte reads and returns the next byte, advancing the position.
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, err
	}
	c.pos++
	return b, nil
}

// ReadFull reads exactly len(buf) bytes into buf.
func (c *Cursor) ReadFull(buf []byte) error {
	n, err := io.ReadFull(c.r, buf)
	c.pos += uint32(n)
	return err
}

// Skip advances the cursor by n bytes without retaining them, for fast
// skipping of data messages whose global message number is unknown.
func (c *Cursor) Skip(n uint32) error {
	// io.CopyN on the underlying reader would allocate a discard buffer per
	// call; reuse a small fixed buffer instead since n is at most one
	// message's payload size (bounded by a uint8 count of uint8-sized
	// fields).
	var buf [64]byte
	for n > 0 {
		chunk := n
		if chunk > uint32(len(buf)) {
			chunk = uint32(len(buf))
		}
		if err := c.ReadFull(buf[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
