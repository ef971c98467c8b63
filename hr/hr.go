// Package hr implements the heart-rate burst reassembly described in §4.7:
// reconstructing one heart-rate sample per second from the FIT `hr`
// message's bit-packed event_timestamp_12 deltas.
package hr

import (
	"math"

	"github.com/lucasjlepore/fit-decode/sink"
)

// Reassemble walks every hr message in s and accumulates per-second
// averages into the record.heart_rate column, for every second that falls
// within the record timeline.
func Reassemble(s *sink.InMemorySink) {
	tsCol, ok := s.RecordColumn("timestamp")
	if !ok || len(tsCol) == 0 {
		return
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

	timestamps, _ := s.NonRecordColumn("hr", "timestamp")
	eventTs, _ := s.NonRecordColumn("hr", "event_timestamp")
	bursts, _ := s.NonRecordColumn("hr", "event_timestamp_12")
	bpmArrays, _ := s.NonRecordColumn("hr", "filtered_bpm")

	n := len(timestamps)
	if len(eventTs) < n {
		n = len(eventTs)
	}
	if len(bpmArrays) < n {
		n = len(bpmArrays)
	}

	sums := make(map[uint32]float64)
	counts := make(map[uint32]int)

	for i := 0; i < n; i++ {
		startTs, ok := toUint32(timestamps[i])
		if !ok {
			continue
		}
		eventTs1024, ok := toFloat(eventTs[i])
		if !ok {
			continue
		}
		bpm := flattenBPM(bpmArrays[i])
		if len(bpm) == 0 {
			continue
		}

		var raw []byte
		if i < len(bursts) {
			raw = burstBytes(bursts[i])
		}

		offsets := decodeOffsets(eventTs1024, raw)
		baseTs := float64(startTs) - eventTs1024/1024.0

		for j, off := range offsets {
			if j >= len(bpm) {
				break
			}
			second := uint32(math.Round(baseTs + off))
			if second < min || second > max {
				continue
			}
			sums[second] += float64(bpm[j])
			counts[second]++
		}
	}

	if len(sums) == 0 {
		return
	}
	col, ok := s.RecordColumn("heart_rate")
	if !ok {
		col = make(map[uint32]any)
	}
	for second, sum := range sums {
		col[second] = int64(math.Round(sum / float64(counts[second])))
	}
	s.SetRecordColumn("heart_rate", col)
}

// decodeOffsets returns, for a single hr message, the event-clock time in
// seconds of every sample it carries: first the message's own
// event_timestamp/1024, then one value per 12-bit delta block in raw,
// rolling a 12-bit counter over 0x1000 per §4.7 step 3. The caller adds
// these to start_ts - event_timestamp/1024.
func decodeOffsets(eventTs1024 float64, raw []byte) []float64 {
	offsets := []float64{eventTs1024 / 1024.0}

	last := uint32(eventTs1024)
	for i := 0; i+1 < len(raw); i += 2 {
		b0, b1 := raw[i], raw[i+1]

		var d12 uint16
		if (i/2)%2 == 0 {
			d12 = uint16(b0) | (uint16(b1)&0x0F)<<8
		} else {
			d12 = (uint16(b1) << 4) | uint16(b0&0xF0)>>4
		}

		newLow12 := uint32(d12)
		if newLow12 < (last & 0xFFF) {
			newLow12 += 0x1000
		}
		last = (last &^ 0xFFF) | newLow12
		offsets = append(offsets, float64(last)/1024.0)
	}
	return offsets
}

func burstBytes(v any) []byte {
	switch raw := v.(type) {
	case []byte:
		return raw
	case []any:
		out := make([]byte, 0, len(raw))
		for _, e := range raw {
			if b, ok := toUint32(e); ok {
				out = append(out, byte(b))
			}
		}
		return out
	default:
		return nil
	}
}

func flattenBPM(v any) []int64 {
	switch raw := v.(type) {
	case []any:
		out := make([]int64, 0, len(raw))
		for _, e := range raw {
			if n, ok := toInt(e); ok {
				out = append(out, n)
			}
		}
		return out
	case int64:
		return []int64{raw}
	case uint64:
		return []int64{int64(raw)}
	default:
		return nil
	}
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint8:
		return uint32(n), true
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
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case uint64:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}
