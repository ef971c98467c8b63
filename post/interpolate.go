package post

import (
	"sort"

	"github.com/lucasjlepore/fit-decode/sink"
)

// interpolate implements phase 5: for every record field opted into
// fix_data, fill the gaps in its sparse timestamp-keyed column against the
// canonical timestamp set.
func interpolate(s *sink.InMemorySink, opts Options, paused map[uint32]bool) {
	if len(opts.FixData) == 0 {
		return
	}
	tsCol, ok := s.RecordColumn("timestamp")
	if !ok {
		return
	}
	canonical := sortedTimestamps(tsCol)
	pc := newPacer(opts)

	fields := opts.FixData
	all := fields["all"]
	for _, name := range s.RecordFieldNames() {
		if name == "timestamp" {
			continue
		}
		latLon := fields["lat_lon"] && (name == "position_lat" || name == "position_long")
		if !all && !fields[name] && !latLon {
			continue
		}
		interpolateField(s, name, canonical, paused, pc)
	}
}

func interpolateField(s *sink.InMemorySink, field string, canonical []uint32, paused map[uint32]bool, pc *pacer) {
	col, ok := s.RecordColumn(field)
	if !ok {
		col = make(map[uint32]any)
		s.SetRecordColumn(field, col)
	}

	known := make([]uint32, 0, len(col))
	for k := range col {
		known = append(known, k)
	}
	sort.Slice(known, func(i, j int) bool { return known[i] < known[j] })
	if len(known) == 0 {
		return
	}

	isInt := isIntValue(col[known[0]])

	for _, t := range canonical {
		pc.tick()
		if _, present := col[t]; present {
			continue
		}

		if field == "cadence" {
			col[t] = int64(0)
			continue
		}

		if paused[t] {
			col[t] = nil
			continue
		}

		i := sort.Search(len(known), func(i int) bool { return known[i] >= t })
		switch {
		case i == 0:
			col[t] = col[known[0]]
		case i == len(known):
			col[t] = col[known[len(known)-1]]
		default:
			a, b := known[i-1], known[i]
			va, vb := toFloat64(col[a]), toFloat64(col[b])
			v := va + (vb-va)*float64(t-a)/float64(b-a)
			if isInt {
				col[t] = int64(roundHalfAwayFromZero(v))
			} else {
				col[t] = v
			}
		}
	}
}

func isIntValue(v any) bool {
	switch v.(type) {
	case int64, uint64, uint32, int32:
		return true
	default:
		return false
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case uint32:
		return float64(n)
	case int32:
		return float64(n)
	default:
		return 0
	}
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
