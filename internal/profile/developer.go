package profile

import (
	"github.com/cespare/xxhash/v2"

	"github.com/lucasjlepore/fit-decode/internal/basetype"
)

// DeveloperFieldDescriptor is built at runtime from a field_description
// message (§3).
type DeveloperFieldDescriptor struct {
	Name     string
	Units    string
	BaseType basetype.Type

	HasNativeMesgNum bool
	NativeMesgNum    uint16
	HasNativeField   bool
	NativeFieldNum   uint8
}

type developerRecord struct {
	DeveloperDataIndex uint8
	FieldNumber        uint8
	Descriptor         DeveloperFieldDescriptor
}

// DeveloperFieldRegistry maps (developer_data_index, field_number) to the
// descriptor installed for it. Keys are hashed with xxhash so lookups during
// the record decode hot path stay a single map probe regardless of how many
// distinct developer fields a file defines.
type DeveloperFieldRegistry struct {
	byKey map[uint64]developerRecord
}

// NewDeveloperFieldRegistry returns an empty registry.
func NewDeveloperFieldRegistry() *DeveloperFieldRegistry {
	return &DeveloperFieldRegistry{byKey: make(map[uint64]developerRecord)}
}

func developerKey(developerDataIndex, fieldNumber uint8) uint64 {
	return xxhash.Sum64(([]byte{developerDataIndex, fieldNumber})[:])
}

// Install records or replaces the descriptor for (developerDataIndex, fieldNumber).
func (r *DeveloperFieldRegistry) Install(developerDataIndex, fieldNumber uint8, d DeveloperFieldDescriptor) {
	r.byKey[developerKey(developerDataIndex, fieldNumber)] = developerRecord{
		DeveloperDataIndex: developerDataIndex,
		FieldNumber:        fieldNumber,
		Descriptor:         d,
	}
}

// Lookup returns the descriptor for (developerDataIndex, fieldNumber).
func (r *DeveloperFieldRegistry) Lookup(developerDataIndex, fieldNumber uint8) (DeveloperFieldDescriptor, bool) {
	rec, ok := r.byKey[developerKey(developerDataIndex, fieldNumber)]
	return rec.Descriptor, ok
}

// BaseType satisfies fitproto.DevFieldTypeFunc.
func (r *DeveloperFieldRegistry) BaseType(developerDataIndex, fieldNumber uint8) (basetype.Type, bool) {
	d, ok := r.Lookup(developerDataIndex, fieldNumber)
	if !ok {
		return 0, false
	}
	return d.BaseType, true
}

// RecordOverrides returns every installed descriptor that declares itself a
// replacement for a record (global 20) column, for the developer-field
// rewrite step (§4.3).
func (r *DeveloperFieldRegistry) RecordOverrides() []struct {
	DeveloperDataIndex uint8
	FieldNumber        uint8
	Descriptor         DeveloperFieldDescriptor
} {
	var out []struct {
		DeveloperDataIndex uint8
		FieldNumber        uint8
		Descriptor         DeveloperFieldDescriptor
	}
	for _, rec := range r.byKey {
		if rec.Descriptor.HasNativeMesgNum && rec.Descriptor.NativeMesgNum == GlobalRecord && rec.Descriptor.HasNativeField {
			out = append(out, struct {
				DeveloperDataIndex uint8
				FieldNumber        uint8
				Descriptor         DeveloperFieldDescriptor
			}{rec.DeveloperDataIndex, rec.FieldNumber, rec.Descriptor})
		}
	}
	return out
}
