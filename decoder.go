// Package fit decodes Garmin/ANT+ FIT activity files into a columnar or
// relational sink, applying the profile's scale/offset/unit metadata and the
// post-decode transforms (epoch shift, interpolation, pause tracking, heart
// rate burst reassembly) described in the component design.
package fit

import (
	"io"

	"github.com/lucasjlepore/fit-decode/hr"
	"github.com/lucasjlepore/fit-decode/internal/basetype"
	"github.com/lucasjlepore/fit-decode/internal/fitproto"
	"github.com/lucasjlepore/fit-decode/internal/profile"
	"github.com/lucasjlepore/fit-decode/pause"
	"github.com/lucasjlepore/fit-decode/post"
	"github.com/lucasjlepore/fit-decode/sink"
)

// alwaysNullSessionFields is the §7/§6 allowlist emitted as explicit null
// even when the raw value equals the base type's invalid sentinel, so these
// columns stay aligned across every session record regardless of which
// fields a given device actually populated.
var alwaysNullSessionFields = map[string]bool{
	"avg_heart_rate": true, "max_heart_rate": true, "avg_power": true,
	"max_power": true, "normalized_power": true, "total_work": true,
	"total_cycles": true, "avg_cadence": true, "max_cadence": true,
	"avg_fractional_cadence": true, "max_fractional_cadence": true,
	"training_stress_score": true, "intensity_factor": true,
	"threshold_power": true, "time_in_hr_zone": true,
	"total_training_effect": true, "total_ascent": true, "total_descent": true,
}

// alwaysKeptMessages are never pruned by Config.LimitData (§6).
var alwaysKeptMessages = map[string]bool{"field_description": true, "developer_data_id": true}

// Decode reads one FIT file body from r and emits every decoded message into
// dst, then runs the post-processing pipeline against dst when dst is an
// *sink.InMemorySink (the BatchedTableSink persists incrementally and has no
// in-memory columns for the post-processor to rewrite; its StopPoint pass is
// invoked separately by the caller via ComputeStopPoints).
func Decode(r io.Reader, dst sink.MessageSink, cfg Config) error {
	if cfg.Units == "" {
		cfg = mergeDefaults(cfg)
	}
	if err := validateOptions(cfg); err != nil {
		return err
	}

	cat := profile.New()
	devRegistry := profile.NewDeveloperFieldRegistry()

	cursor := fitproto.NewCursor(r)
	header, err := fitproto.DecodeHeader(cursor)
	if err != nil {
		return classify(err)
	}

	parser := fitproto.NewRecordParser(cursor, cat.Known, devRegistry.BaseType)
	parser.SetPacer(cfg.Pacer, cfg.PaceEvery)

	var dateTimeFields []post.DateTimeField
	seenDateTime := make(map[string]bool)

	emit := func(msg fitproto.DataMessage) error {
		mdesc, known := cat.Message(msg.GlobalMesgNum)
		name := mdesc.Name
		if !known {
			return nil
		}

		if msg.GlobalMesgNum == profile.GlobalFieldDescription {
			installFieldDescription(devRegistry, msg)
		}

		fields := make(map[string]any)
		for _, fv := range msg.Fields {
			if name == "record" && fv.FieldNumber == fitproto.FieldTimestampNum {
				// record.timestamp is the resolved value on msg.Timestamp,
				// already handling compressed-timestamp expansion; the raw
				// field-253 value (when present) carries no epoch delta and
				// would be a stale duplicate of the same column key.
				continue
			}
			fd, _ := cat.Field(msg.GlobalMesgNum, fv.FieldNumber)
			if fd.DateTime && name != "record" {
				key := name + "." + fd.Name
				if !seenDateTime[key] {
					seenDateTime[key] = true
					dateTimeFields = append(dateTimeFields, post.DateTimeField{Message: name, Field: fd.Name})
				}
			}

			v, present := resolveFieldValue(fv, fd)
			if !present {
				if name == "session" && alwaysNullSessionFields[fd.Name] {
					fields[fd.Name] = nil
				}
				continue
			}
			if !fieldAllowed(cfg, name, fd.Name) {
				continue
			}
			fields[fd.Name] = v
		}

		for _, dv := range msg.DevFields {
			desc, ok := devRegistry.Lookup(dv.DeveloperDataIndex, dv.FieldNumber)
			fieldName := desc.Name
			if !ok || fieldName == "" {
				fieldName = syntheticDevFieldName(dv.DeveloperDataIndex, dv.FieldNumber)
			}
			var v any
			if dv.Decoded != nil {
				v = dv.Decoded
			} else {
				v = dv.Raw
			}
			fields[fieldName] = v
		}

		out := sink.Message{Name: name, Fields: fields, Timestamp: msg.Timestamp, HasTimestamp: msg.HasTimestamp}
		return dst.Put(out)
	}

	if err := parser.Run(uint32(header.Size)+header.DataSize, emit); err != nil {
		return classify(err)
	}

	mem, ok := dst.(*sink.InMemorySink)
	if !ok {
		return dst.Flush()
	}

	applyDeveloperRecordOverrides(mem, cat, devRegistry, cfg)

	paused := pause.Track(mem)
	hr.Reassemble(mem)

	opts := post.Options{
		Units:            cfg.Units,
		Pace:             cfg.Pace,
		GarminTimestamps: cfg.GarminTimestamps,
		FixData:          cfg.FixData,
		DataEverySecond:  cfg.DataEverySecond,
		Pacer:            cfg.Pacer,
		PaceEvery:        cfg.PaceEvery,
	}
	if err := post.Run(mem, opts, paused, dateTimeFields, nil); err != nil {
		return classify(err)
	}
	return nil
}

// mergeDefaults fills in the default unit system (§6: "metric") when the
// caller passed a zero-value Config instead of starting from
// DefaultConfig(). OverwriteWithDevData has no such fallback here: its
// zero value (false) is indistinguishable from an explicit choice, so
// callers who want the documented default must start from DefaultConfig().
func mergeDefaults(cfg Config) Config {
	cfg.Units = DefaultConfig().Units
	return cfg
}

// resolveFieldValue applies scale/offset to a decoded field, reporting
// present=false when the raw value was the base type's invalid sentinel (it
// is then omitted from the message, except for the always-null allowlist
// handled by the caller).
func resolveFieldValue(fv fitproto.FieldValue, fd profile.FieldDescriptor) (any, bool) {
	if fv.IsArray {
		out := make([]any, len(fv.Array))
		for i, elem := range fv.Array {
			if elem == nil {
				out[i] = nil
				continue
			}
			out[i] = scaledValue(elem, fd)
		}
		return out, true
	}
	if fv.Invalid {
		return nil, false
	}
	return scaledValue(fv.Scalar, fd), true
}

func scaledValue(raw any, fd profile.FieldDescriptor) any {
	switch n := raw.(type) {
	case int64:
		if fd.Scale != 0 || fd.Offset != 0 {
			return fd.Apply(float64(n))
		}
		return n
	case uint64:
		if fd.Scale != 0 || fd.Offset != 0 {
			return fd.Apply(float64(n))
		}
		return n
	case float64:
		return fd.Apply(n)
	default:
		return raw
	}
}

func fieldAllowed(cfg Config, message, field string) bool {
	if alwaysKeptMessages[message] || field == "timestamp" {
		return true
	}
	allow, limited := cfg.LimitData[message]
	if !limited {
		return true
	}
	return allow[field]
}

func installFieldDescription(reg *profile.DeveloperFieldRegistry, msg fitproto.DataMessage) {
	var devIdx, fieldNum uint8
	var baseTypeID uint8
	var name, units string
	var nativeMesgNum uint16
	var hasNativeMesg, hasNativeField bool
	var nativeFieldNum uint8

	for _, fv := range msg.Fields {
		switch fv.FieldNumber {
		case 0:
			if n, ok := fv.Scalar.(uint64); ok {
				devIdx = uint8(n)
			}
		case 1:
			if n, ok := fv.Scalar.(uint64); ok {
				fieldNum = uint8(n)
			}
		case 2:
			if n, ok := fv.Scalar.(uint64); ok {
				baseTypeID = uint8(n)
			}
		case 3:
			if s, ok := fv.Scalar.(string); ok {
				name = s
			}
		case 6:
			if n, ok := fv.Scalar.(uint64); ok {
				nativeMesgNum = uint16(n)
				hasNativeMesg = true
			}
		case 7:
			if n, ok := fv.Scalar.(uint64); ok {
				nativeFieldNum = uint8(n)
				hasNativeField = true
			}
		case 8:
			if s, ok := fv.Scalar.(string); ok {
				units = s
			}
		}
	}

	reg.Install(devIdx, fieldNum, profile.DeveloperFieldDescriptor{
		Name:             name,
		Units:            units,
		BaseType:         basetype.Decompress(baseTypeID),
		HasNativeMesgNum: hasNativeMesg,
		NativeMesgNum:    nativeMesgNum,
		HasNativeField:   hasNativeField,
		NativeFieldNum:   nativeFieldNum,
	})
}

// applyDeveloperRecordOverrides implements the second half of §4.3: after
// the whole file is read, a developer field declaring native_field_num on
// the record message replaces that native column, unless the caller asked
// to preserve existing native data and the native column is non-empty.
func applyDeveloperRecordOverrides(mem *sink.InMemorySink, cat *profile.Catalogue, reg *profile.DeveloperFieldRegistry, cfg Config) {
	for _, ov := range reg.RecordOverrides() {
		nativeName := syntheticNativeFieldName(cat, ov.Descriptor.NativeFieldNum)
		devFieldName := ov.Descriptor.Name
		if devFieldName == "" {
			devFieldName = syntheticDevFieldName(ov.DeveloperDataIndex, ov.FieldNumber)
		}
		devCol, ok := mem.RecordColumn(devFieldName)
		if !ok {
			continue
		}
		nativeCol, nativeExists := mem.RecordColumn(nativeName)
		if !cfg.OverwriteWithDevData && nativeExists && len(nativeCol) > 0 {
			continue
		}
		mem.SetRecordColumn(nativeName, devCol)
	}
}

func syntheticDevFieldName(devIdx, fieldNum uint8) string {
	return "dev_" + profile.FieldNumName(devIdx) + "_" + profile.FieldNumName(fieldNum)
}

func syntheticNativeFieldName(cat *profile.Catalogue, fieldNum uint8) string {
	fd, ok := cat.Field(profile.GlobalRecord, fieldNum)
	if ok {
		return fd.Name
	}
	return profile.FieldNumName(fieldNum)
}
