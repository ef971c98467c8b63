package hr

import (
	"testing"

	"github.com/lucasjlepore/fit-decode/sink"
)

func putRecord(t *testing.T, s *sink.InMemorySink, ts uint32) {
	t.Helper()
	if err := s.Put(sink.Message{Name: "record", Timestamp: ts, HasTimestamp: true}); err != nil {
		t.Fatalf("put record: %v", err)
	}
}

func TestSingleHRMessageNoBurst(t *testing.T) {
	s := sink.NewInMemorySink()
	for ts := uint32(95); ts <= 105; ts++ {
		putRecord(t, s, ts)
	}
	if err := s.Put(sink.Message{
		Name: "hr",
		Fields: map[string]any{
			"timestamp":       uint32(100),
			"event_timestamp": float64(2048),
			"filtered_bpm":    []any{int64(120)},
		},
	}); err != nil {
		t.Fatalf("put hr: %v", err)
	}

	Reassemble(s)

	col, ok := s.RecordColumn("heart_rate")
	if !ok {
		t.Fatal("expected heart_rate column")
	}
	if col[100] != int64(120) {
		t.Fatalf("heart_rate[100] = %v, want 120", col[100])
	}
}

func TestHRBurstExpandsMultipleSeconds(t *testing.T) {
	s := sink.NewInMemorySink()
	for ts := uint32(0); ts <= 10; ts++ {
		putRecord(t, s, ts)
	}
	if err := s.Put(sink.Message{
		Name: "hr",
		Fields: map[string]any{
			"timestamp":          uint32(2),
			"event_timestamp":    float64(0),
			"event_timestamp_12": []any{byte(0x00), byte(0x04)},
			"filtered_bpm":       []any{int64(100), int64(110)},
		},
	}); err != nil {
		t.Fatalf("put hr: %v", err)
	}

	Reassemble(s)

	col, ok := s.RecordColumn("heart_rate")
	if !ok {
		t.Fatal("expected heart_rate column")
	}
	if col[2] != int64(100) {
		t.Fatalf("heart_rate[2] = %v, want 100", col[2])
	}
	if col[3] != int64(110) {
		t.Fatalf("heart_rate[3] = %v, want 110", col[3])
	}
}

func TestOutOfRangeSecondsDropped(t *testing.T) {
	s := sink.NewInMemorySink()
	putRecord(t, s, 5)
	if err := s.Put(sink.Message{
		Name: "hr",
		Fields: map[string]any{
			"timestamp":       uint32(500),
			"event_timestamp": float64(0),
			"filtered_bpm":    []any{int64(150)},
		},
	}); err != nil {
		t.Fatalf("put hr: %v", err)
	}

	Reassemble(s)

	if _, ok := s.RecordColumn("heart_rate"); ok {
		t.Fatal("expected no heart_rate column when every sample falls outside the record timeline")
	}
}
