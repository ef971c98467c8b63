package fitproto

// FitUnixEpochDelta is the number of seconds between the FIT epoch
// (1989-12-31 00:00 UTC) and the Unix epoch.
const FitUnixEpochDelta uint32 = 631_065_600

const (
	// GlobalRecord is the global message number for "record" (GPS/sensor
	// sample) messages, the only kind with timestamp-keyed columns.
	GlobalRecord = 20
	// FieldTimestampNum is the field number FIT reserves for a message's
	// own timestamp across every message type.
	FieldTimestampNum = 253
)
