package fitproto

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderSizeNoCRC = 12
	HeaderSizeCRC   = 14
)

// Header is the decoded FIT file header (§4.1).
type Header struct {
	Size            uint8
	ProtocolVersion uint8
	ProfileVersion  uint16
	DataSize        uint32
	DataType        [4]byte
	CRC             uint16
	HasCRC          bool
}

// DecodeHeader reads the 12- or 14-byte file header from c. The CRC, when
// present, is returned but never validated: many emitters leave it zero and
// validating it is out of scope.
func DecodeHeader(c *Cursor) (Header, error) {
	size, err := c.ReadByte()
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if size != HeaderSizeNoCRC && size != HeaderSizeCRC {
		return Header{}, fmt.Errorf("%w: header_size=%d", ErrBadHeader, size)
	}

	rest := make([]byte, int(size)-1)
	if err := c.ReadFull(rest); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	h := Header{Size: size}
	h.ProtocolVersion = rest[0]
	h.ProfileVersion = binary.LittleEndian.Uint16(rest[1:3])
	h.DataSize = binary.LittleEndian.Uint32(rest[3:7])
	copy(h.DataType[:], rest[7:11])
	if size == HeaderSizeCRC {
		h.CRC = binary.LittleEndian.Uint16(rest[11:13])
		h.HasCRC = true
	}

	if string(h.DataType[:]) != ".FIT" || h.DataSize == 0 {
		return Header{}, ErrNotFit
	}
	return h, nil
}
