// Package post implements the PostProcessor phases that run after a FIT
// file has been fully ingested into an InMemorySink (§4.5): timestamp epoch
// shift, signed-integer repair, duplicate-timestamp pruning, optional
// second-resolution densification, missing-key interpolation, and unit
// conversion.
package post

import (
	"sort"

	"github.com/lucasjlepore/fit-decode/internal/fitproto"
	"github.com/lucasjlepore/fit-decode/sink"
)

// Pacer is invoked at bounded iteration counts inside the interpolation and
// signed-repair loops so an embedding host can extend a work lease. It must
// not block (§5).
type Pacer interface {
	Pace()
}

// Options mirrors the subset of the decoder configuration (§6
// "Configuration") the post-processor needs. The root fit package builds
// one of these from its own Config.
type Options struct {
	Units            string // "metric" | "statute" | "raw"
	Pace             bool
	GarminTimestamps bool
	// FixData names the record fields opted into missing-key interpolation.
	FixData         map[string]bool
	DataEverySecond bool
	// Pacer, when non-nil, is invoked every PaceEvery values processed by the
	// interpolation and signed-repair phases. PaceEvery <= 0 disables pacing
	// even when Pacer is set.
	Pacer     Pacer
	PaceEvery int
}

// pacer wraps an Options' Pacer/PaceEvery into a stateful per-loop counter.
// Phase 2 (signed repair) and phase 5 (interpolation) each build their own.
type pacer struct {
	p     Pacer
	every int
	n     int
}

func newPacer(opts Options) *pacer {
	return &pacer{p: opts.Pacer, every: opts.PaceEvery}
}

func (pc *pacer) tick() {
	if pc == nil || pc.p == nil || pc.every <= 0 {
		return
	}
	pc.n++
	if pc.n%pc.every == 0 {
		pc.p.Pace()
	}
}

// DateTimeField names one (message, field) pair that receives the FIT-epoch
// shift.
type DateTimeField struct {
	Message string
	Field   string
}

// SignRepairField names a record column whose raw values must be
// reinterpreted as two's-complement signed integers at the given bit width
// (§4.5 phase 2).
type SignRepairField struct {
	Field string
	Width int
}

// Run executes every phase, in order, against s. paused is the
// PauseTracker's timestamp->bool map (nil is treated as "nothing paused").
// dateTimeFields enumerates every non-record date-time field the profile
// catalogue marked (record.timestamp is handled separately since the
// decoder itself, not the catalogue, resolves it). signRepair names record
// columns needing phase 2's signed reinterpretation.
func Run(s *sink.InMemorySink, opts Options, paused map[uint32]bool, dateTimeFields []DateTimeField, signRepair []SignRepairField) error {
	shiftEpoch(s, opts, dateTimeFields)

	repairPacer := newPacer(opts)
	for _, sr := range signRepair {
		if col, ok := s.RecordColumn(sr.Field); ok {
			RepairSigned(col, sr.Width, repairPacer)
		}
	}

	if err := dedupeRecordTimestamps(s); err != nil {
		return err
	}

	if opts.DataEverySecond {
		densifyRecordTimestamps(s)
	}

	interpolate(s, opts, paused)

	convertUnits(s, opts)

	return nil
}

// shiftEpoch implements phase 1. record.timestamp was unconditionally
// produced in Unix-epoch space by the decoder (the compressed-timestamp
// expansion requires it); when the caller asked for raw Garmin timestamps,
// this phase subtracts the delta back out. Every other catalogued
// date-time field was left in raw FIT-epoch seconds by the decoder, so it
// receives the opposite treatment: add the delta unless raw timestamps were
// requested.
func shiftEpoch(s *sink.InMemorySink, opts Options, dateTimeFields []DateTimeField) {
	if opts.GarminTimestamps {
		if col, ok := s.RecordColumn("timestamp"); ok {
			for k, v := range col {
				if u, ok := toUint32(v); ok {
					col[k] = u - fitproto.FitUnixEpochDelta
				}
			}
		}
	}

	if opts.GarminTimestamps {
		return
	}
	for _, dtf := range dateTimeFields {
		seq, ok := s.NonRecordColumn(dtf.Message, dtf.Field)
		if !ok {
			continue
		}
		shifted := make([]any, len(seq))
		for i, v := range seq {
			if u, ok := toUint32(v); ok {
				shifted[i] = u + fitproto.FitUnixEpochDelta
			} else {
				shifted[i] = v
			}
		}
		s.SetNonRecordColumn(dtf.Message, dtf.Field, shifted)
	}
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint32:
		return n, true
	case uint64:
		return uint32(n), true
	case int64:
		return uint32(n), true
	case float64:
		return uint32(n), true
	default:
		return 0, false
	}
}

// dedupeRecordTimestamps implements phase 3. The in-memory store already
// dedupes by first occurrence at insert time (see sink.InMemorySink.Put);
// this phase only materializes the public timestamp_original column.
func dedupeRecordTimestamps(s *sink.InMemorySink) error {
	col, ok := s.RecordColumn("timestamp")
	if !ok {
		return nil
	}
	keys := sortedTimestamps(col)
	orig := make([]any, len(keys))
	for i, k := range keys {
		orig[i] = k
	}
	s.SetTimestampOriginal(orig)
	return nil
}

// densifyRecordTimestamps implements phase 4: replace the sparse key set
// with every second from min to max.
func densifyRecordTimestamps(s *sink.InMemorySink) {
	col, ok := s.RecordColumn("timestamp")
	if !ok || len(col) == 0 {
		return
	}
	keys := sortedTimestamps(col)
	min, max := keys[0], keys[len(keys)-1]
	dense := make(map[uint32]any, int(max-min)+1)
	for t := min; t <= max; t++ {
		dense[t] = t
	}
	s.SetRecordColumn("timestamp", dense)
}

func sortedTimestamps(col map[uint32]any) []uint32 {
	out := make([]uint32, 0, len(col))
	for k := range col {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
