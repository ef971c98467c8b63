// Package basetype catalogues the FIT wire base types: their encoded id,
// byte width, signedness, and invalid-value sentinel.
package basetype

import "fmt"

// Type is the FIT base-type id as it appears in a field definition's third
// byte (the low 5 bits carry the type; the high 3 bits are an endian-
// independence marker the FIT SDK historically reused for size hints, and
// are masked off on read).
type Type uint8

const (
	Enum    Type = 0x00
	Sint8   Type = 0x01
	Uint8   Type = 0x02
	Sint16  Type = 0x83
	Uint16  Type = 0x84
	Sint32  Type = 0x85
	Uint32  Type = 0x86
	String  Type = 0x07
	Float32 Type = 0x88
	Float64 Type = 0x89
	Uint8z  Type = 0x0A
	Uint16z Type = 0x8B
	Uint32z Type = 0x8C
	Byte    Type = 0x0D
	Sint64  Type = 0x8E
	Uint64  Type = 0x8F
	Uint64z Type = 0x90
)

// Spec describes one base type's wire shape.
type Spec struct {
	Name string
	// Size is the width of one element in bytes. The variable-width
	// string/byte types carry 1 (one byte per element); the definition's
	// declared size is their true width.
	Size int
	// Signed marks two's-complement integer types. Floats leave it false and
	// set Float instead.
	Signed bool
	Float  bool
	// ZeroIsInvalid marks the "z" variants, whose invalid sentinel is 0
	// rather than all-ones.
	ZeroIsInvalid bool
}

var specs = map[Type]Spec{
	Enum:    {Name: "enum", Size: 1},
	Sint8:   {Name: "sint8", Size: 1, Signed: true},
	Uint8:   {Name: "uint8", Size: 1},
	Sint16:  {Name: "sint16", Size: 2, Signed: true},
	Uint16:  {Name: "uint16", Size: 2},
	Sint32:  {Name: "sint32", Size: 4, Signed: true},
	Uint32:  {Name: "uint32", Size: 4},
	String:  {Name: "string", Size: 1},
	Float32: {Name: "float32", Size: 4, Float: true},
	Float64: {Name: "float64", Size: 8, Float: true},
	Uint8z:  {Name: "uint8z", Size: 1, ZeroIsInvalid: true},
	Uint16z: {Name: "uint16z", Size: 2, ZeroIsInvalid: true},
	Uint32z: {Name: "uint32z", Size: 4, ZeroIsInvalid: true},
	Byte:    {Name: "byte", Size: 1},
	Sint64:  {Name: "sint64", Size: 8, Signed: true},
	Uint64:  {Name: "uint64", Size: 8},
	Uint64z: {Name: "uint64z", Size: 8, ZeroIsInvalid: true},
}

// Decompress normalizes a raw definition byte to a known Type. FIT emitters
// mostly write the canonical byte values above directly, but some encode
// only the low 5 bits for the multi-byte numeric types; decompress handles
// both by re-deriving the high bits from the known type table.
func Decompress(raw uint8) Type {
	if _, ok := specs[Type(raw)]; ok {
		return Type(raw)
	}
	switch raw & 0x1F {
	case 0x03:
		return Sint16
	case 0x04:
		return Uint16
	case 0x05:
		return Sint32
	case 0x06:
		return Uint32
	case 0x08:
		return Float32
	case 0x09:
		return Float64
	case 0x0B:
		return Uint16z
	case 0x0C:
		return Uint32z
	case 0x0E:
		return Sint64
	case 0x0F:
		return Uint64
	case 0x10:
		return Uint64z
	default:
		return Type(raw)
	}
}

// Lookup returns the Spec for t and whether t is a known base type.
func Lookup(t Type) (Spec, bool) {
	s, ok := specs[t]
	return s, ok
}

// Width returns the element byte width for t, or 0 if t is unknown. For the
// variable-width string/byte types it returns 1; their full width is the
// field definition's declared size.
func Width(t Type) int {
	s, ok := specs[t]
	if !ok {
		return 0
	}
	return s.Size
}

// Known reports whether t is in the §6 base-type table.
func Known(t Type) bool {
	_, ok := specs[t]
	return ok
}

func (t Type) String() string {
	if s, ok := specs[t]; ok {
		return s.Name
	}
	return fmt.Sprintf("unknown(0x%02X)", uint8(t))
}
