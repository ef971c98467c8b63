package fitproto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/lucasjlepore/fit-decode/internal/basetype"
)

func fitHeader(dataSize uint32) []byte {
	h := make([]byte, HeaderSizeNoCRC)
	h[0] = HeaderSizeNoCRC
	h[1] = 16                                   // protocol version
	binary.LittleEndian.PutUint16(h[2:4], 2078) // profile version
	binary.LittleEndian.PutUint32(h[4:8], dataSize)
	copy(h[8:12], ".FIT")
	return h
}

func definitionRecord(localType uint8, globalMesgNum uint16, fields ...FieldDefinition) []byte {
	buf := []byte{definitionMask | localType, 0x00, 0x00}
	var g [2]byte
	binary.LittleEndian.PutUint16(g[:], globalMesgNum)
	buf = append(buf, g[:]...)
	buf = append(buf, byte(len(fields)))
	for _, f := range fields {
		buf = append(buf, f.FieldNumber, f.Size, byte(f.BaseType))
	}
	return buf
}

func dataRecord(localType uint8, payload []byte) []byte {
	return append([]byte{localType}, payload...)
}

func compressedDataRecord(localType uint8, tsOffset uint8, payload []byte) []byte {
	header := compressedHeaderMask | (localType << compressedLocalTypeBits) | (tsOffset & compressedTimeMask)
	return append([]byte{header}, payload...)
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func runParser(t *testing.T, body []byte) ([]DataMessage, error) {
	t.Helper()
	header := fitHeader(uint32(len(body)))
	full := append(append([]byte{}, header...), body...)

	c := NewCursor(bytes.NewReader(full))
	h, err := DecodeHeader(c)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	target := uint32(h.Size) + h.DataSize

	p := NewRecordParser(c, nil, nil)
	var msgs []DataMessage
	err = p.Run(target, func(m DataMessage) error {
		msgs = append(msgs, m)
		return nil
	})
	if err == nil && c.Pos() != target {
		t.Fatalf("cursor position %d != target %d", c.Pos(), target)
	}
	return msgs, err
}

func TestMinimalHeaderNoBody(t *testing.T) {
	msgs, err := runParser(t, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}

func TestSingleFileIDRecord(t *testing.T) {
	def := definitionRecord(0, 0, FieldDefinition{FieldNumber: 4, Size: 4, BaseType: basetype.Uint32})
	data := dataRecord(0, u32le(1_000_000_000))
	body := append(def, data...)

	msgs, err := runParser(t, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	fv := msgs[0].Fields[0]
	raw, ok := fv.Scalar.(uint64)
	if !ok {
		t.Fatalf("expected uint64 scalar, got %T", fv.Scalar)
	}
	if got := uint32(raw) + FitUnixEpochDelta; got != 1_631_065_600 {
		t.Fatalf("time_created shifted = %d, want 1631065600", got)
	}
}

func TestCompressedTimestampExpansion(t *testing.T) {
	def := definitionRecord(0, GlobalRecord, FieldDefinition{FieldNumber: FieldTimestampNum, Size: 4, BaseType: basetype.Uint32})
	const trec uint32 = 1_700_000_000
	first := dataRecord(0, u32le(trec-FitUnixEpochDelta))

	offset := uint8(((trec-FitUnixEpochDelta)&0x1F + 3) & 0x1F)
	// A compressed-header record carries no timestamp field of its own, so it
	// uses a separate definition (local type 1) with no fields.
	compressedDef := definitionRecord(1, GlobalRecord)
	second := compressedDataRecord(1, offset, nil)

	body := append(append(append(def, first...), compressedDef...), second...)

	msgs, err := runParser(t, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Timestamp != trec {
		t.Fatalf("first timestamp = %d, want %d", msgs[0].Timestamp, trec)
	}
	if want := trec + 3; msgs[1].Timestamp != want {
		t.Fatalf("second timestamp = %d, want %d", msgs[1].Timestamp, want)
	}
}

func TestSignedInt8Decode(t *testing.T) {
	def := definitionRecord(0, GlobalRecord, FieldDefinition{FieldNumber: 13, Size: 1, BaseType: basetype.Sint8})
	data := dataRecord(0, []byte{0xE2})
	body := append(def, data...)

	msgs, err := runParser(t, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fv := msgs[0].Fields[0]
	v, ok := fv.Scalar.(int64)
	if !ok {
		t.Fatalf("expected int64 scalar, got %T", fv.Scalar)
	}
	if v != -30 {
		t.Fatalf("temperature = %d, want -30", v)
	}
}

func TestUndefinedLocalTypeFails(t *testing.T) {
	body := dataRecord(3, []byte{0x01})
	_, err := runParser(t, body)
	if !errors.Is(err, ErrUndefinedLocalType) {
		t.Fatalf("expected ErrUndefinedLocalType, got %v", err)
	}
}

func TestOrphanCompressedTimestampFails(t *testing.T) {
	def := definitionRecord(0, GlobalRecord)
	body := append(def, compressedDataRecord(0, 5, nil)...)
	_, err := runParser(t, body)
	if !errors.Is(err, ErrOrphanCompressedTS) {
		t.Fatalf("expected ErrOrphanCompressedTS, got %v", err)
	}
}

func TestUnknownMessageSkippedByCursorAdvance(t *testing.T) {
	def := definitionRecord(1, 9999, FieldDefinition{FieldNumber: 0, Size: 4, BaseType: basetype.Uint32})
	data := dataRecord(1, u32le(42))
	body := append(def, data...)

	header := fitHeader(uint32(len(body)))
	full := append(append([]byte{}, header...), body...)
	c := NewCursor(bytes.NewReader(full))
	h, err := DecodeHeader(c)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	target := uint32(h.Size) + h.DataSize

	p := NewRecordParser(c, func(g uint16) bool { return g == GlobalRecord }, nil)
	var msgs []DataMessage
	if err := p.Run(target, func(m DataMessage) error { msgs = append(msgs, m); return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected unknown message to be skipped, got %d messages", len(msgs))
	}
	if c.Pos() != target {
		t.Fatalf("cursor position %d != target %d", c.Pos(), target)
	}
}
