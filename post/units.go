package post

import (
	"math"

	"github.com/lucasjlepore/fit-decode/sink"
)

type unitKind int

const (
	kindDistance unitKind = iota
	kindAltitude
	kindSpeed
	kindTemperature
	kindAngle
)

// unitBearingFields names the record/session/lap/segment_lap fields phase 6
// converts, by field name rather than by message, since the same field name
// carries the same physical quantity across every message it appears on
// (§4.5 phase 6, §6 conversion factors).
var unitBearingFields = map[string]unitKind{
	"distance":          kindDistance,
	"total_distance":    kindDistance,
	"altitude":          kindAltitude,
	"enhanced_altitude": kindAltitude,
	"total_ascent":      kindAltitude,
	"total_descent":     kindAltitude,
	"speed":             kindSpeed,
	"enhanced_speed":    kindSpeed,
	"avg_speed":         kindSpeed,
	"max_speed":         kindSpeed,
	"temperature":       kindTemperature,
	"position_lat":      kindAngle,
	"position_long":     kindAngle,
}

var unitConvertedMessages = []string{"session", "lap", "segment_lap"}

// convertUnits implements phase 6. opts.Units == "raw" skips conversion
// entirely, preserving invariant #6's round-trip property: a raw decode
// converted afterward reproduces the same numbers as a direct metric/
// statute decode, since conversion here is a pure function of the stored
// raw value.
func convertUnits(s *sink.InMemorySink, opts Options) {
	if opts.Units == "raw" {
		return
	}
	statute := opts.Units == "statute"

	for _, message := range unitConvertedMessages {
		for field, kind := range unitBearingFields {
			seq, ok := s.NonRecordColumn(message, field)
			if !ok {
				continue
			}
			converted := make([]any, len(seq))
			for i, v := range seq {
				converted[i] = convertValue(v, kind, statute, opts.Pace)
			}
			s.SetNonRecordColumn(message, field, converted)
		}
	}

	for field, kind := range unitBearingFields {
		col, ok := s.RecordColumn(field)
		if !ok {
			continue
		}
		for k, v := range col {
			col[k] = convertValue(v, kind, statute, opts.Pace)
		}
	}
}

func convertValue(v any, kind unitKind, statute, pace bool) any {
	if v == nil {
		return nil
	}
	f, ok := asFloat(v)
	if !ok {
		return v
	}

	switch kind {
	case kindTemperature:
		if statute {
			return round(f*9/5+32, 2)
		}
		return f
	case kindDistance:
		if statute {
			return round(f*0.000621371192, 5)
		}
		return f
	case kindAltitude:
		if statute {
			return round(f*3.2808399, 1)
		}
		return f
	case kindSpeed:
		return convertSpeed(f, statute, pace)
	case kindAngle:
		return round(f*180/2147483648, 5)
	default:
		return v
	}
}

func convertSpeed(ms float64, statute, pace bool) float64 {
	if ms == 0 {
		if pace {
			return 0
		}
	}
	if statute {
		if pace {
			if ms == 0 {
				return 0
			}
			return round(60/2.23693629/ms, 3)
		}
		return round(ms*2.23693629, 3)
	}
	if pace {
		if ms == 0 {
			return 0
		}
		return round(60/3.6/ms, 3)
	}
	return round(ms*3.6, 3)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
