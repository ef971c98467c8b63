package fitproto

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/lucasjlepore/fit-decode/internal/basetype"
)

// FieldValue is one decoded field of a data message (§3 DecodedValue).
type FieldValue struct {
	FieldNumber uint8
	BaseType    basetype.Type
	// Scalar holds the decoded value when IsArray is false: int64, uint64,
	// float64, string, or []byte (for the byte base type).
	Scalar any
	// Array holds one entry per element when IsArray is true, each either a
	// numeric scalar or nil when that element equals the invalid sentinel.
	Array   []any
	IsArray bool
	// Invalid is true when a scalar field equals its base type's invalid
	// sentinel. Array fields never set this; invalid elements are nil'd in
	// place (the field itself is still present, so columns stay aligned).
	Invalid bool
}

// DevFieldValue is one decoded developer-data field. Decoded is non-nil only
// when the caller supplied a descriptor base type for it; otherwise Raw
// carries the undecoded bytes.
type DevFieldValue struct {
	FieldNumber        uint8
	DeveloperDataIndex uint8
	Raw                []byte
	Decoded            any
	BaseType           basetype.Type
	HasBaseType        bool
}

func byteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// decodeField decodes size declared bytes raw as one or more values of base
// type bt, consuming fd.Size bytes already read into raw.
func decodeField(fd FieldDefinition, raw []byte, order binary.ByteOrder) (FieldValue, error) {
	fv := FieldValue{FieldNumber: fd.FieldNumber, BaseType: fd.BaseType}

	if fd.BaseType == basetype.String {
		fv.Scalar = decodeString(raw)
		return fv, nil
	}
	if fd.BaseType == basetype.Byte {
		if allBytes(raw, 0xFF) {
			fv.Invalid = true
		}
		fv.Scalar = append([]byte(nil), raw...)
		return fv, nil
	}

	spec, ok := basetype.Lookup(fd.BaseType)
	if !ok || spec.Size == 0 {
		return FieldValue{}, ErrUnsupportedBaseType
	}

	width := spec.Size
	if len(raw)%width != 0 {
		// Declared size doesn't line up with the base type width; treat the
		// whole thing as an opaque blob rather than guessing a partial
		// element.
		fv.Scalar = append([]byte(nil), raw...)
		return fv, nil
	}

	n := len(raw) / width
	if n <= 1 {
		v, invalid := decodeSingleValue(raw, fd.BaseType, order)
		fv.Scalar = v
		fv.Invalid = invalid
		return fv, nil
	}

	fv.IsArray = true
	fv.Array = make([]any, n)
	for i := 0; i < n; i++ {
		elem := raw[i*width : (i+1)*width]
		v, invalid := decodeSingleValue(elem, fd.BaseType, order)
		if invalid {
			fv.Array[i] = nil
		} else {
			fv.Array[i] = v
		}
	}
	return fv, nil
}

// decodeSingleValue decodes one base-type-width element and reports whether
// it equals that type's invalid sentinel.
func decodeSingleValue(raw []byte, bt basetype.Type, order binary.ByteOrder) (any, bool) {
	switch bt {
	case basetype.Enum, basetype.Uint8:
		v := raw[0]
		return uint64(v), v == 0xFF
	case basetype.Sint8:
		v := int8(raw[0])
		return int64(v), v == 0x7F
	case basetype.Uint8z:
		v := raw[0]
		return uint64(v), v == 0
	case basetype.Uint16:
		v := order.Uint16(raw)
		return uint64(v), v == 0xFFFF
	case basetype.Sint16:
		v := int16(order.Uint16(raw))
		return int64(v), v == 0x7FFF
	case basetype.Uint16z:
		v := order.Uint16(raw)
		return uint64(v), v == 0
	case basetype.Uint32:
		v := order.Uint32(raw)
		return uint64(v), v == 0xFFFFFFFF
	case basetype.Sint32:
		v := int32(order.Uint32(raw))
		return int64(v), v == 0x7FFFFFFF
	case basetype.Uint32z:
		v := order.Uint32(raw)
		return uint64(v), v == 0
	case basetype.Uint64:
		v := order.Uint64(raw)
		return v, v == 0xFFFFFFFFFFFFFFFF
	case basetype.Sint64:
		v := int64(order.Uint64(raw))
		return v, v == 0x7FFFFFFFFFFFFFFF
	case basetype.Uint64z:
		v := order.Uint64(raw)
		return v, v == 0
	case basetype.Float32:
		bits := order.Uint32(raw)
		return float64(math.Float32frombits(bits)), bits == 0xFFFFFFFF
	case basetype.Float64:
		bits := order.Uint64(raw)
		return math.Float64frombits(bits), bits == 0xFFFFFFFFFFFFFFFF
	default:
		return nil, true
	}
}

// reinterpretSigned re-decodes a value that was unpacked as unsigned back
// into its signed two's-complement form. Grounded on the "signed-int repair"
// phase (§4.5 phase 2); exposed here since it operates at the same bit
// widths as decodeSingleValue.
func reinterpretSigned(u uint64, width int) int64 {
	switch width {
	case 2:
		return int64(int16(uint16(u)))
	case 4:
		return int64(int32(uint32(u)))
	case 8:
		return int64(u)
	default:
		return int64(u)
	}
}

func decodeString(raw []byte) string {
	if i := indexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		if c < 0x20 || c == 0x7F {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func allBytes(b []byte, v byte) bool {
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return len(b) > 0
}
