// Package profile is the static catalogue of FIT global messages and their
// field-level scale/offset/units metadata (§4.3), extended at runtime by
// field_description messages via the developer-field registry in this
// package.
package profile

// FieldDescriptor is one profile field entry (§3).
type FieldDescriptor struct {
	Name  string
	Units string
	// Scale and Offset implement scaled = raw/Scale - Offset. Zero-value
	// Scale is treated as 1 (no division) by Apply.
	Scale  float64
	Offset float64
	// DateTime marks a field that receives the FIT-epoch-to-Unix shift
	// (§4.2 step 3) in addition to any scale/offset.
	DateTime bool
}

// Apply returns raw/Scale - Offset, honoring the Scale==0 ⇒ 1 convention.
func (f FieldDescriptor) Apply(raw float64) float64 {
	scale := f.Scale
	if scale == 0 {
		scale = 1
	}
	return raw/scale - f.Offset
}

// MessageDescriptor is one profile message entry: a human name plus its
// field table keyed by field number.
type MessageDescriptor struct {
	Name   string
	Fields map[uint8]FieldDescriptor
}

// Global message numbers for the messages enumerated in §6.
const (
	GlobalFileID           = 0
	GlobalDeviceSettings   = 2
	GlobalUserProfile      = 3
	GlobalZonesTarget      = 7
	GlobalSport            = 12
	GlobalSession          = 18
	GlobalLap              = 19
	GlobalRecord           = 20
	GlobalEvent            = 21
	GlobalDeviceInfo       = 23
	GlobalActivity         = 34
	GlobalFileCreator      = 49
	GlobalHRV              = 78
	GlobalLength           = 101
	GlobalHR               = 132
	GlobalSegmentLap       = 142
	GlobalFieldDescription = 206
	GlobalDeveloperDataID  = 207
	GlobalDiveSettings     = 258
	GlobalDiveGas          = 259
	GlobalDiveAlarm        = 262
	GlobalDiveSummary      = 268
)

// timestampField is the field-253 entry shared by every message in the
// catalogue: FIT reserves field number 253 for a message's own timestamp
// regardless of global message number.
func timestampField() FieldDescriptor {
	return FieldDescriptor{Name: "timestamp", Units: "s", DateTime: true}
}

// Catalogue is the static message table, looked up by global message
// number.
type Catalogue struct {
	messages map[uint16]MessageDescriptor
}

// New builds the catalogue seeded with the §6 message list.
func New() *Catalogue {
	return &Catalogue{messages: builtin()}
}

// Known reports whether globalMesgNum is catalogued.
func (c *Catalogue) Known(globalMesgNum uint16) bool {
	_, ok := c.messages[globalMesgNum]
	return ok
}

// Message returns the descriptor for globalMesgNum.
func (c *Catalogue) Message(globalMesgNum uint16) (MessageDescriptor, bool) {
	m, ok := c.messages[globalMesgNum]
	return m, ok
}

// Field returns the field descriptor for (globalMesgNum, fieldNum), falling
// back to a synthetic "field_N" entry with no scale/offset when the field is
// not explicitly catalogued but the message itself is known.
func (c *Catalogue) Field(globalMesgNum uint16, fieldNum uint8) (FieldDescriptor, bool) {
	m, ok := c.messages[globalMesgNum]
	if !ok {
		return FieldDescriptor{}, false
	}
	if fd, ok := m.Fields[fieldNum]; ok {
		return fd, true
	}
	return FieldDescriptor{Name: syntheticFieldName(fieldNum)}, true
}

func syntheticFieldName(fieldNum uint8) string {
	return "field_" + itoa(fieldNum)
}

// FieldNumName renders a field number as bare decimal digits (the synthetic
// fallback adds a "field_" prefix to the same digits), for callers outside this package that need to name an uncatalogued field
// (e.g. a developer field with no descriptor name).
func FieldNumName(n uint8) string {
	return itoa(n)
}

func itoa(n uint8) string {
	if n == 0 {
		return "0"
	}
	var buf [3]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func builtin() map[uint16]MessageDescriptor {
	return map[uint16]MessageDescriptor{
		GlobalFileID: {Name: "file_id", Fields: map[uint8]FieldDescriptor{
			0: {Name: "type"},
			1: {Name: "manufacturer"},
			2: {Name: "product"},
			3: {Name: "serial_number"},
			4: {Name: "time_created", Units: "s", DateTime: true},
			5: {Name: "number"},
			8: {Name: "product_name"},
		}},
		GlobalDeviceSettings: {Name: "device_settings", Fields: map[uint8]FieldDescriptor{
			0: {Name: "active_time_zone"},
			1: {Name: "utc_offset"},
			2: {Name: "time_offset"},
		}},
		GlobalUserProfile: {Name: "user_profile", Fields: map[uint8]FieldDescriptor{
			0: {Name: "message_index"},
			1: {Name: "friendly_name"},
			2: {Name: "gender"},
			3: {Name: "age", Units: "years"},
			4: {Name: "height", Units: "m", Scale: 100},
			5: {Name: "weight", Units: "kg", Scale: 10},
		}},
		GlobalZonesTarget: {Name: "zones_target", Fields: map[uint8]FieldDescriptor{
			1: {Name: "max_heart_rate", Units: "bpm"},
			2: {Name: "threshold_heart_rate", Units: "bpm"},
			3: {Name: "hr_calc_type"},
			7: {Name: "pwr_calc_type"},
			5: {Name: "functional_threshold_power", Units: "w"},
		}},
		GlobalSport: {Name: "sport", Fields: map[uint8]FieldDescriptor{
			0: {Name: "sport"},
			1: {Name: "sub_sport"},
			3: {Name: "name"},
		}},
		GlobalSession: {Name: "session", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			2:   {Name: "start_time", Units: "s", DateTime: true},
			7:   {Name: "total_elapsed_time", Units: "s", Scale: 1000},
			8:   {Name: "total_timer_time", Units: "s", Scale: 1000},
			9:   {Name: "total_distance", Units: "m", Scale: 100},
			14:  {Name: "avg_speed", Units: "m/s", Scale: 1000},
			15:  {Name: "max_speed", Units: "m/s", Scale: 1000},
			16:  {Name: "avg_heart_rate", Units: "bpm"},
			17:  {Name: "max_heart_rate", Units: "bpm"},
			18:  {Name: "avg_cadence", Units: "rpm"},
			19:  {Name: "max_cadence", Units: "rpm"},
			20:  {Name: "avg_power", Units: "w"},
			21:  {Name: "max_power", Units: "w"},
			24:  {Name: "total_calories", Units: "kcal"},
			34:  {Name: "total_training_effect"},
			41:  {Name: "total_ascent", Units: "m"},
			42:  {Name: "total_descent", Units: "m"},
			48:  {Name: "normalized_power", Units: "w"},
			57:  {Name: "threshold_power", Units: "w"},
			63:  {Name: "avg_fractional_cadence", Units: "rpm", Scale: 128},
			64:  {Name: "max_fractional_cadence", Units: "rpm", Scale: 128},
			70:  {Name: "total_work", Units: "j"},
			71:  {Name: "total_cycles"},
			91:  {Name: "training_stress_score", Scale: 10},
			92:  {Name: "intensity_factor", Scale: 1000},
			13:  {Name: "sport"},
		}},
		GlobalLap: {Name: "lap", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			2:   {Name: "start_time", Units: "s", DateTime: true},
			7:   {Name: "total_elapsed_time", Units: "s", Scale: 1000},
			8:   {Name: "total_timer_time", Units: "s", Scale: 1000},
			9:   {Name: "total_distance", Units: "m", Scale: 100},
			13:  {Name: "avg_speed", Units: "m/s", Scale: 1000},
			14:  {Name: "max_speed", Units: "m/s", Scale: 1000},
			15:  {Name: "avg_heart_rate", Units: "bpm"},
			16:  {Name: "max_heart_rate", Units: "bpm"},
			17:  {Name: "avg_cadence", Units: "rpm"},
			18:  {Name: "max_cadence", Units: "rpm"},
			19:  {Name: "avg_power", Units: "w"},
			20:  {Name: "max_power", Units: "w"},
			42:  {Name: "total_work", Units: "j"},
		}},
		GlobalRecord: {Name: "record", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			0:   {Name: "position_lat", Units: "semicircles"},
			1:   {Name: "position_long", Units: "semicircles"},
			2:   {Name: "altitude", Units: "m", Scale: 5, Offset: 500},
			3:   {Name: "heart_rate", Units: "bpm"},
			4:   {Name: "cadence", Units: "rpm"},
			5:   {Name: "distance", Units: "m", Scale: 100},
			6:   {Name: "speed", Units: "m/s", Scale: 1000},
			7:   {Name: "power", Units: "w"},
			9:   {Name: "grade", Units: "%", Scale: 100},
			13:  {Name: "temperature", Units: "c"},
			61:  {Name: "enhanced_altitude", Units: "m", Scale: 5, Offset: 500},
			73:  {Name: "enhanced_speed", Units: "m/s", Scale: 1000},
		}},
		GlobalEvent: {Name: "event", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			0:   {Name: "event"},
			1:   {Name: "event_type"},
			2:   {Name: "data16"},
			3:   {Name: "data"},
			4:   {Name: "event_group"},
		}},
		GlobalDeviceInfo: {Name: "device_info", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			0:   {Name: "device_index"},
			1:   {Name: "device_type"},
			2:   {Name: "manufacturer"},
			3:   {Name: "serial_number"},
			4:   {Name: "product"},
			5:   {Name: "software_version", Scale: 100},
			10:  {Name: "battery_status"},
		}},
		GlobalActivity: {Name: "activity", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			0:   {Name: "total_timer_time", Units: "s", Scale: 1000},
			1:   {Name: "num_sessions"},
			2:   {Name: "type"},
			3:   {Name: "event"},
			4:   {Name: "event_type"},
			5:   {Name: "local_timestamp", Units: "s"},
		}},
		GlobalFileCreator: {Name: "file_creator", Fields: map[uint8]FieldDescriptor{
			0: {Name: "software_version"},
			1: {Name: "hardware_version"},
		}},
		GlobalHRV: {Name: "hrv", Fields: map[uint8]FieldDescriptor{
			0: {Name: "times", Units: "s"},
		}},
		GlobalLength: {Name: "length", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			2:   {Name: "start_time", Units: "s", DateTime: true},
			7:   {Name: "total_elapsed_time", Units: "s", Scale: 1000},
			8:   {Name: "total_timer_time", Units: "s", Scale: 1000},
			11:  {Name: "avg_speed", Units: "m/s", Scale: 1000},
			13:  {Name: "avg_swimming_cadence", Units: "strokes/min"},
		}},
		GlobalHR: {Name: "hr", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			0:   {Name: "fractional_timestamp", Scale: 32768},
			1:   {Name: "time256", Scale: 256},
			6:   {Name: "event_timestamp", Scale: 1024},
			9:   {Name: "filtered_bpm", Units: "bpm"},
			10:  {Name: "event_timestamp_12"},
		}},
		GlobalSegmentLap: {Name: "segment_lap", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			2:   {Name: "start_time", Units: "s", DateTime: true},
			7:   {Name: "total_elapsed_time", Units: "s", Scale: 1000},
			9:   {Name: "total_distance", Units: "m", Scale: 100},
			14:  {Name: "max_speed", Units: "m/s", Scale: 1000},
		}},
		GlobalFieldDescription: {Name: "field_description", Fields: map[uint8]FieldDescriptor{
			0: {Name: "developer_data_index"},
			1: {Name: "field_definition_number"},
			2: {Name: "fit_base_type_id"},
			3: {Name: "field_name"},
			6: {Name: "native_mesg_num"},
			7: {Name: "native_field_num"},
			8: {Name: "units"},
		}},
		GlobalDeveloperDataID: {Name: "developer_data_id", Fields: map[uint8]FieldDescriptor{
			0: {Name: "developer_id"},
			1: {Name: "application_id"},
			2: {Name: "manufacturer_id"},
			3: {Name: "developer_data_index"},
			4: {Name: "application_version"},
		}},
		GlobalDiveSettings: {Name: "dive_settings", Fields: map[uint8]FieldDescriptor{
			0: {Name: "name"},
			1: {Name: "model"},
		}},
		GlobalDiveGas: {Name: "dive_gas", Fields: map[uint8]FieldDescriptor{
			0: {Name: "helium_content", Units: "%"},
			1: {Name: "oxygen_content", Units: "%"},
			2: {Name: "status"},
		}},
		GlobalDiveAlarm: {Name: "dive_alarm", Fields: map[uint8]FieldDescriptor{
			0: {Name: "depth", Units: "m", Scale: 1000},
			1: {Name: "time", Units: "s"},
			2: {Name: "enabled"},
		}},
		GlobalDiveSummary: {Name: "dive_summary", Fields: map[uint8]FieldDescriptor{
			253: timestampField(),
			2:   {Name: "avg_depth", Units: "m", Scale: 1000},
			3:   {Name: "max_depth", Units: "m", Scale: 1000},
			4:   {Name: "surface_interval", Units: "s"},
		}},
	}
}
