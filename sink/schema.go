package sink

import (
	"fmt"
	"sort"
	"strings"
)

// mandatoryRecordColumns are installed on the record table at creation time
// even before a message carrying them has been seen (§4.4.2).
var mandatoryRecordColumns = []string{"position_lat", "position_long", "distance", "timestamp"}

func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "t"
	}
	return out
}

// columnSQLType picks a SQLite storage class for v from its Go type alone.
// SQLite's type affinity is advisory, so this only needs to be good enough
// for readable schemas. Developer-field columns are typed the same way; their
// FIT base_type and declared size play no part in the column type.
func columnSQLType(v any) string {
	switch v.(type) {
	case float64, float32:
		return "REAL"
	case int64, int32, int, uint64, uint32, uint:
		return "NUMERIC"
	case []byte:
		return "BLOB"
	default:
		return "TEXT"
	}
}

// unionColumns collects every field name seen across a batch of messages for
// one table, in sorted order so ALTER statements are deterministic.
func unionColumns(messages []Message) []string {
	seen := map[string]bool{}
	for _, m := range messages {
		for field := range m.Fields {
			seen[field] = true
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// recordAwareColumnType picks a column's SQL storage class, special-casing
// the record table's synthetic columns (timestamp, spatial_point, paused,
// stopped) that never appear as ordinary message fields.
func recordAwareColumnType(column string, isRecord bool, messages []Message) string {
	if isRecord {
		switch column {
		case "timestamp":
			return "NUMERIC"
		case "paused", "stopped":
			return "NUMERIC"
		case "spatial_point":
			return "TEXT"
		}
	}
	sample, _ := sampleValue(messages, column)
	return columnSQLType(sample)
}

// sampleValue returns the first non-nil value observed for field across
// messages, used to pick a column type when the column is created.
func sampleValue(messages []Message, field string) (any, bool) {
	for _, m := range messages {
		if v, ok := m.Fields[field]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// pointLiteral renders a record's lat/long as the textual representation
// stored in spatial_point. SQLite has no native spatial type; this column
// stands in for the abstract contract's spatial point while remaining
// queryable as plain text.
func pointLiteral(lat, long any) (string, bool) {
	latF, ok1 := toFloat(lat)
	longF, ok2 := toFloat(long)
	if !ok1 || !ok2 {
		return "", false
	}
	return fmt.Sprintf("POINT(%g %g)", latF, longF), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
