package fitproto

import "github.com/lucasjlepore/fit-decode/internal/basetype"

// FieldDefinition is one field slot of a MessageDefinition (§3).
type FieldDefinition struct {
	FieldNumber uint8
	Size        uint8
	BaseType    basetype.Type
}

// DeveloperFieldDefinition is one developer-data field slot (§3).
type DeveloperFieldDefinition struct {
	FieldNumber        uint8
	Size               uint8
	DeveloperDataIndex uint8
}

// MessageDefinition is the field layout installed for a local message type
// by a definition record, and referenced by subsequent data records sharing
// that local type (§3).
type MessageDefinition struct {
	GlobalMesgNum     uint16
	BigEndian         bool
	Fields            []FieldDefinition
	DevFields         []DeveloperFieldDefinition
	TotalPayloadBytes uint32
}

// DefinitionTable holds the 16 local-message-type slots live at any point
// during decode. A later definition with the same local type replaces the
// prior one; data messages referencing an empty slot are a protocol error.
type DefinitionTable struct {
	slots [16]*MessageDefinition
}

// Set installs def under localType, overwriting whatever was there.
func (t *DefinitionTable) Set(localType uint8, def *MessageDefinition) {
	t.slots[localType&0x0F] = def
}

// Get returns the definition installed under localType, if any.
func (t *DefinitionTable) Get(localType uint8) (*MessageDefinition, bool) {
	d := t.slots[localType&0x0F]
	return d, d != nil
}
