package fit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/lucasjlepore/fit-decode/internal/fitproto"
	"github.com/lucasjlepore/fit-decode/sink"
)

func TestDefaultConfigUsesMetricAndOverwritesDevData(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Units != "metric" {
		t.Fatalf("Units = %q, want metric", cfg.Units)
	}
	if !cfg.OverwriteWithDevData {
		t.Fatal("OverwriteWithDevData = false, want true")
	}
}

func TestMergeDefaultsOnlyFillsUnits(t *testing.T) {
	cfg := mergeDefaults(Config{})
	if cfg.Units != "metric" {
		t.Fatalf("Units = %q, want metric", cfg.Units)
	}
	if cfg.OverwriteWithDevData {
		t.Fatal("OverwriteWithDevData should stay false when caller did not opt in via DefaultConfig")
	}
}

func TestValidateOptionsRejectsBadUnits(t *testing.T) {
	err := validateOptions(Config{Units: "imperial"})
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != KindBadOption {
		t.Fatalf("validateOptions() = %v, want KindBadOption", err)
	}
}

func TestValidateOptionsRejectsBadFixDataEntry(t *testing.T) {
	err := validateOptions(Config{Units: "metric", FixData: map[string]bool{"nonsense": true}})
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != KindBadOption {
		t.Fatalf("validateOptions() = %v, want KindBadOption", err)
	}
}

func TestValidateOptionsAcceptsDefaults(t *testing.T) {
	if err := validateOptions(DefaultConfig()); err != nil {
		t.Fatalf("validateOptions(DefaultConfig()) = %v, want nil", err)
	}
}

func TestClassifyMapsKnownSentinels(t *testing.T) {
	de := classify(fitproto.ErrNotFit)
	if de.Kind != KindNotFit {
		t.Fatalf("classify(ErrNotFit) kind = %v, want KindNotFit", de.Kind)
	}
	if !errors.Is(de, fitproto.ErrNotFit) {
		t.Fatal("classify result should unwrap to the original sentinel")
	}
}

func TestClassifyDefaultsUnknownErrorsToStoreError(t *testing.T) {
	de := classify(errors.New("boom"))
	if de.Kind != KindStoreError {
		t.Fatalf("classify(unknown) kind = %v, want KindStoreError", de.Kind)
	}
}

func TestFieldAllowedRespectsLimitDataAndAlwaysKeptMessages(t *testing.T) {
	cfg := Config{LimitData: map[string]map[string]bool{"record": {"power": true}}}
	if !fieldAllowed(cfg, "record", "power") {
		t.Fatal("power should be allowed for record under its own LimitData entry")
	}
	if fieldAllowed(cfg, "record", "cadence") {
		t.Fatal("cadence should be excluded once record has a LimitData allowlist")
	}
	if !fieldAllowed(cfg, "field_description", "anything") {
		t.Fatal("field_description must never be limited")
	}
	if !fieldAllowed(cfg, "lap", "avg_power") {
		t.Fatal("messages absent from LimitData are not limited")
	}
}

// devFieldOverrideFile builds a minimal FIT byte stream: a field_description
// message declaring a developer field that overrides record.power, followed
// by one record carrying both the native power reading and the developer
// field's overriding reading. Scenario 7 (§4.3).
func devFieldOverrideFile() []byte {
	var body []byte

	// field_description definition, local type 1.
	body = append(body,
		0x40|1, 0x00, 0x00, // definition header, reserved, little-endian
		0xCE, 0x00, // global mesg num 206 (field_description)
		7,          // field count
		0, 1, 0x02, // developer_data_index: uint8
		1, 1, 0x02, // field_definition_number: uint8
		2, 1, 0x02, // fit_base_type_id: uint8
		3, 8, 0x07, // field_name: string[8]
		6, 2, 0x84, // native_mesg_num: uint16
		7, 1, 0x02, // native_field_num: uint8
		8, 2, 0x07, // units: string[2]
	)

	// field_description data, local type 1: developer field 5 on developer
	// data index 0, named "custpwr", overriding record (20) field 7 (power).
	body = append(body, 1)
	body = append(body, 0, 5, 0x84)
	body = append(body, []byte("custpwr\x00")...)
	body = append(body, leU16(20)...)
	body = append(body, 7)
	body = append(body, []byte("W\x00")...)

	// record definition, local type 0, with one developer field.
	body = append(body,
		0x40|0x20|0, 0x00, 0x00, // definition header (dev-data flag set), reserved, little-endian
		0x14, 0x00, // global mesg num 20 (record)
		2,            // field count
		253, 4, 0x86, // timestamp: uint32
		7, 2, 0x84, // power: uint16
		1,       // developer field count
		5, 2, 0, // field 5, size 2, developer_data_index 0
	)

	// record data, local type 0: timestamp=100, native power=150,
	// developer power override=999.
	body = append(body, 0)
	body = append(body, leU32(100)...)
	body = append(body, leU16(150)...)
	body = append(body, leU16(999)...)

	header := make([]byte, fitproto.HeaderSizeNoCRC)
	header[0] = fitproto.HeaderSizeNoCRC
	header[1] = 16
	binary.LittleEndian.PutUint16(header[2:4], 2078)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(body)))
	copy(header[8:12], ".FIT")

	return append(header, body...)
}

func leU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func leU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func TestDecodeAppliesDeveloperFieldRecordOverrideByDefault(t *testing.T) {
	mem := sink.NewInMemorySink()
	if err := Decode(bytes.NewReader(devFieldOverrideFile()), mem, DefaultConfig()); err != nil {
		t.Fatalf("Decode() = %v, want nil", err)
	}

	col, ok := mem.RecordColumn("power")
	if !ok {
		t.Fatal("record.power column missing")
	}
	ts := uint32(100) + fitproto.FitUnixEpochDelta
	v, ok := col[ts]
	if !ok {
		t.Fatalf("no power value at timestamp %d", ts)
	}
	if got := toUint64(v); got != 999 {
		t.Fatalf("power = %v, want developer override 999 (native reading was 150)", v)
	}
}

func TestDecodeKeepsNativeFieldWhenOverwriteWithDevDataDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverwriteWithDevData = false

	mem := sink.NewInMemorySink()
	if err := Decode(bytes.NewReader(devFieldOverrideFile()), mem, cfg); err != nil {
		t.Fatalf("Decode() = %v, want nil", err)
	}

	col, ok := mem.RecordColumn("power")
	if !ok {
		t.Fatal("record.power column missing")
	}
	ts := uint32(100) + fitproto.FitUnixEpochDelta
	v, ok := col[ts]
	if !ok {
		t.Fatalf("no power value at timestamp %d", ts)
	}
	if got := toUint64(v); got != 150 {
		t.Fatalf("power = %v, want native reading 150 preserved (OverwriteWithDevData is false)", v)
	}
}

func toUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	default:
		return 0
	}
}
