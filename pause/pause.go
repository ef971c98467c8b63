// Package pause implements PauseTracker (§4.6): deriving a per-second
// paused/active map from timer-start and timer-stop events, for use by the
// interpolation phase and gap-aware aggregation.
package pause

import "github.com/lucasjlepore/fit-decode/sink"

// GapThreshold is the shortest contiguous paused run the tracker will keep
// labelled as paused; anything shorter is re-labelled active.
const GapThreshold = 60

const (
	eventTimer = 0
	typeStart  = 0
	typeStop   = 4
)

// Track builds the timestamp->paused map from the event/record columns of
// s. It returns an empty, non-nil map if there is no record timeline or no
// timer events to walk.
func Track(s *sink.InMemorySink) map[uint32]bool {
	out := make(map[uint32]bool)

	tsCol, ok := s.RecordColumn("timestamp")
	if !ok || len(tsCol) == 0 {
		return out
	}
	var min, max uint32
	first := true
	for t := range tsCol {
		if first || t < min {
			min = t
		}
		if first || t > max {
			max = t
		}
		first = false
	}

	starts, stops := timerCrossings(s)
	if len(starts) == 0 && len(stops) == 0 {
		return out
	}

	si, pi := 0, 0
	paused := false
	for t := min; t <= max; t++ {
		for pi < len(stops) && stops[pi] == t {
			paused = true
			pi++
		}
		for si < len(starts) && starts[si] == t {
			paused = false
			si++
		}
		out[t] = paused
	}

	applyGapThreshold(out, min, max)
	return out
}

// timerCrossings extracts the ascending timestamps at which a timer event
// with event_type start/stop occurred, from the event message's parallel
// timestamp/event/event_type columns.
func timerCrossings(s *sink.InMemorySink) (starts, stops []uint32) {
	tsSeq, ok := s.NonRecordColumn("event", "timestamp")
	if !ok {
		return nil, nil
	}
	evSeq, ok := s.NonRecordColumn("event", "event")
	if !ok {
		return nil, nil
	}
	typeSeq, ok := s.NonRecordColumn("event", "event_type")
	if !ok {
		return nil, nil
	}

	n := len(tsSeq)
	if len(evSeq) < n {
		n = len(evSeq)
	}
	if len(typeSeq) < n {
		n = len(typeSeq)
	}

	for i := 0; i < n; i++ {
		ev, ok := toInt(evSeq[i])
		if !ok || ev != eventTimer {
			continue
		}
		t, ok := toUint32(tsSeq[i])
		if !ok {
			continue
		}
		et, ok := toInt(typeSeq[i])
		if !ok {
			continue
		}
		switch et {
		case typeStart:
			starts = append(starts, t)
		case typeStop:
			stops = append(stops, t)
		}
	}
	return starts, stops
}

// applyGapThreshold re-labels any contiguous paused run shorter than
// GapThreshold seconds as active, walking min..max in order.
func applyGapThreshold(m map[uint32]bool, min, max uint32) {
	var runStart uint32
	inRun := false

	flush := func(end uint32) {
		if !inRun {
			return
		}
		if end-runStart < GapThreshold {
			for t := runStart; t < end; t++ {
				m[t] = false
			}
		}
		inRun = false
	}

	for t := min; t <= max; t++ {
		if m[t] {
			if !inRun {
				runStart = t
				inRun = true
			}
		} else {
			flush(t)
		}
		if t == max {
			break
		}
	}
	flush(max + 1)
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

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	default:
		return 0, false
	}
}
