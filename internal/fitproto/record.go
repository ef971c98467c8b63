package fitproto

import (
	"fmt"

	"github.com/lucasjlepore/fit-decode/internal/basetype"
)

const (
	compressedHeaderMask    = 0x80
	compressedLocalTypeMask = 0x60
	compressedLocalTypeBits = 5
	compressedTimeMask      = 0x1F
	definitionMask          = 0x40
	devDataMask             = 0x20
	localTypeMask           = 0x0F
)

// DataMessage is one decoded data record (§3, §4.2).
type DataMessage struct {
	LocalType     uint8
	GlobalMesgNum uint16
	Fields        []FieldValue
	DevFields     []DevFieldValue
	// Timestamp is the resolved Unix-epoch second used to key this message
	// in timestamp-indexed columns. Only set for GlobalRecord messages.
	Timestamp    uint32
	HasTimestamp bool
}

// KnownGlobalFunc reports whether the profile catalogues globalMesgNum. An
// unknown message with no developer fields is skipped by cursor advance
// rather than field-by-field decode.
type KnownGlobalFunc func(globalMesgNum uint16) bool

// DevFieldTypeFunc resolves a developer field's descriptor-declared base
// type, if one has been installed by a field_description message.
type DevFieldTypeFunc func(developerDataIndex, fieldNumber uint8) (basetype.Type, bool)

// Pacer is invoked at bounded iteration counts inside the long decode loop
// so an embedding host can extend a work lease. It must not block.
type Pacer interface {
	Pace()
}

// RecordParser is the driver loop described in §4.2: it reads one record
// header at a time and dispatches to definition ingestion or data decode.
type RecordParser struct {
	cursor        *Cursor
	defs          DefinitionTable
	isKnownGlobal KnownGlobalFunc
	devFieldType  DevFieldTypeFunc

	// prevTimestamp is the last resolved record timestamp, in Unix-epoch
	// seconds. Zero means no timestamp anchor has been seen yet.
	prevTimestamp      uint32
	maxRecordTimestamp uint32

	pacer     Pacer
	paceEvery int
	iter      int
}

// NewRecordParser builds a parser reading from cursor. isKnownGlobal and
// devFieldType may be nil, in which case every message is treated as known
// and developer fields are never type-resolved.
func NewRecordParser(cursor *Cursor, isKnownGlobal KnownGlobalFunc, devFieldType DevFieldTypeFunc) *RecordParser {
	return &RecordParser{cursor: cursor, isKnownGlobal: isKnownGlobal, devFieldType: devFieldType}
}

// SetPacer installs a Pacer invoked every `every` records decoded. every <= 0
// disables pacing.
func (p *RecordParser) SetPacer(pacer Pacer, every int) {
	p.pacer = pacer
	p.paceEvery = every
}

// Run drives the main loop until the cursor reaches targetPos
// (header_size + data_size), invoking emit for each data message decoded.
// emit returning an error aborts the loop.
func (p *RecordParser) Run(targetPos uint32, emit func(DataMessage) error) error {
	for p.cursor.Pos() < targetPos {
		p.pace()

		headerByte, err := p.cursor.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}

		if headerByte&compressedHeaderMask != 0 {
			localType := (headerByte & compressedLocalTypeMask) >> compressedLocalTypeBits
			tsOffset := uint32(headerByte & compressedTimeMask)
			if err := p.readDataMessage(localType, true, tsOffset, emit); err != nil {
				return err
			}
			continue
		}

		localType := headerByte & localTypeMask
		if headerByte&definitionMask != 0 {
			devFlag := headerByte&devDataMask != 0
			if err := p.readDefinitionMessage(localType, devFlag); err != nil {
				return err
			}
			continue
		}
		if err := p.readDataMessage(localType, false, 0, emit); err != nil {
			return err
		}
	}
	if p.cursor.Pos() != targetPos {
		return ErrTruncated
	}
	return nil
}

func (p *RecordParser) pace() {
	if p.pacer == nil || p.paceEvery <= 0 {
		return
	}
	p.iter++
	if p.iter%p.paceEvery == 0 {
		p.pacer.Pace()
	}
}

func (p *RecordParser) readDefinitionMessage(localType uint8, devFlag bool) error {
	if _, err := p.cursor.ReadByte(); err != nil { // reserved
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	archByte, err := p.cursor.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	bigEndian := archByte == 1
	order := byteOrder(bigEndian)

	var globalBuf [2]byte
	if err := p.cursor.ReadFull(globalBuf[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	globalMesgNum := order.Uint16(globalBuf[:])

	numFields, err := p.cursor.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	fields := make([]FieldDefinition, numFields)
	var total uint32
	for i := range fields {
		var buf [3]byte
		if err := p.cursor.ReadFull(buf[:]); err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		fields[i] = FieldDefinition{FieldNumber: buf[0], Size: buf[1], BaseType: basetype.Decompress(buf[2])}
		total += uint32(buf[1])
	}

	var devFields []DeveloperFieldDefinition
	if devFlag {
		numDev, err := p.cursor.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		devFields = make([]DeveloperFieldDefinition, numDev)
		for i := range devFields {
			var buf [3]byte
			if err := p.cursor.ReadFull(buf[:]); err != nil {
				return fmt.Errorf("%w: %v", ErrTruncated, err)
			}
			devFields[i] = DeveloperFieldDefinition{FieldNumber: buf[0], Size: buf[1], DeveloperDataIndex: buf[2]}
			total += uint32(buf[1])
		}
	}

	p.defs.Set(localType, &MessageDefinition{
		GlobalMesgNum:     globalMesgNum,
		BigEndian:         bigEndian,
		Fields:            fields,
		DevFields:         devFields,
		TotalPayloadBytes: total,
	})
	return nil
}

func (p *RecordParser) readDataMessage(localType uint8, compressed bool, tsOffset uint32, emit func(DataMessage) error) error {
	def, ok := p.defs.Get(localType)
	if !ok {
		return ErrUndefinedLocalType
	}

	known := p.isKnownGlobal == nil || p.isKnownGlobal(def.GlobalMesgNum)
	if !known && len(def.DevFields) == 0 {
		if err := p.cursor.Skip(def.TotalPayloadBytes); err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return nil
	}

	order := byteOrder(def.BigEndian)
	msg := DataMessage{LocalType: localType, GlobalMesgNum: def.GlobalMesgNum}

	for _, fd := range def.Fields {
		raw := make([]byte, fd.Size)
		if err := p.cursor.ReadFull(raw); err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		fv, err := decodeField(fd, raw, order)
		if err != nil {
			return err
		}
		msg.Fields = append(msg.Fields, fv)
	}

	for _, dfd := range def.DevFields {
		raw := make([]byte, dfd.Size)
		if err := p.cursor.ReadFull(raw); err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		dv := DevFieldValue{
			FieldNumber:        dfd.FieldNumber,
			DeveloperDataIndex: dfd.DeveloperDataIndex,
			Raw:                append([]byte(nil), raw...),
		}
		if p.devFieldType != nil {
			if bt, ok := p.devFieldType(dfd.DeveloperDataIndex, dfd.FieldNumber); ok {
				fv, err := decodeField(FieldDefinition{FieldNumber: dfd.FieldNumber, Size: dfd.Size, BaseType: bt}, raw, order)
				if err == nil {
					dv.BaseType = bt
					dv.HasBaseType = true
					if fv.IsArray {
						dv.Decoded = fv.Array
					} else {
						dv.Decoded = fv.Scalar
					}
				}
			}
		}
		msg.DevFields = append(msg.DevFields, dv)
	}

	if def.GlobalMesgNum == GlobalRecord {
		ts, err := p.resolveRecordTimestamp(msg, compressed, tsOffset)
		if err != nil {
			return err
		}
		msg.Timestamp = ts
		msg.HasTimestamp = true
		p.prevTimestamp = ts
		if ts > p.maxRecordTimestamp {
			p.maxRecordTimestamp = ts
		}
	}

	return emit(msg)
}

// resolveRecordTimestamp implements §4.2 step 4: prefer an explicit
// timestamp field, then a compressed-timestamp expansion against the last
// full timestamp, then a synthetic max+1.
func (p *RecordParser) resolveRecordTimestamp(msg DataMessage, compressed bool, tsOffset uint32) (uint32, error) {
	for _, fv := range msg.Fields {
		if fv.FieldNumber != FieldTimestampNum || fv.Invalid {
			continue
		}
		if raw, ok := fv.Scalar.(uint64); ok {
			p.prevTimestamp = uint32(raw) + FitUnixEpochDelta
			return p.prevTimestamp, nil
		}
	}

	if compressed {
		if p.prevTimestamp == 0 {
			return 0, ErrOrphanCompressedTS
		}
		base := p.prevTimestamp - FitUnixEpochDelta
		low5 := base & compressedTimeMask
		ts := base - low5 + tsOffset
		if tsOffset < low5 {
			ts += 32
		}
		return ts + FitUnixEpochDelta, nil
	}

	return p.maxRecordTimestamp + 1, nil
}
