package fit

import (
	"github.com/lucasjlepore/fit-decode/internal/fitproto"
	"github.com/lucasjlepore/fit-decode/sink"
)

// Config enumerates the decoder's external configuration surface (§6).
type Config struct {
	// Units selects "metric" (default), "statute", or "raw".
	Units string
	// Pace reports speed columns as seconds per kilometre/mile instead of a
	// rate.
	Pace bool
	// GarminTimestamps skips the FIT-epoch-to-Unix shift, leaving every
	// date-time field (including record.timestamp) in raw Garmin seconds.
	GarminTimestamps bool
	// FixData names the record columns densified/interpolated by the
	// post-processor. "all" opts every column in; "lat_lon" selects
	// position_lat and position_long.
	FixData map[string]bool
	// DataEverySecond densifies record.timestamp to one entry per second
	// before interpolation runs.
	DataEverySecond bool
	// LimitData restricts, per message name, which field names are kept.
	// A message absent from this map is not limited. field_description and
	// developer_data_id are never limited.
	LimitData map[string]map[string]bool
	// BufferInputToDB and Store describe a BatchedTableSink back-end. Decode
	// does not read them: it writes to whichever sink the caller passes.
	BufferInputToDB bool
	Store           sink.BatchedTableSinkOptions
	// InputIsData treats the Decode input as an in-memory byte buffer
	// rather than something to be opened as a file path by the caller.
	// The core only ever reads from an io.Reader, so this flag is
	// informational for callers building their own Reader.
	InputIsData bool
	// OverwriteWithDevData controls whether a developer field that
	// declares a native record column replaces that column's data when the
	// native column already has values (default true).
	OverwriteWithDevData bool
	// Pacer, when non-nil, is invoked every PaceEvery iterations inside the
	// record-decode, interpolation, and signed-repair loops (§5). It must
	// not block. PaceEvery <= 0 disables pacing even when Pacer is set.
	Pacer     fitproto.Pacer
	PaceEvery int
}

// DefaultConfig returns the documented defaults (§6): metric units,
// OverwriteWithDevData true, every other flag off.
func DefaultConfig() Config {
	return Config{
		Units:                "metric",
		OverwriteWithDevData: true,
	}
}
