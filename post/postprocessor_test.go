package post

import (
	"testing"

	"github.com/lucasjlepore/fit-decode/sink"
)

func TestMissingDistanceInterpolationWithPause(t *testing.T) {
	s := sink.NewInMemorySink()
	for _, ts := range []uint32{0, 1, 2, 3, 4} {
		fields := map[string]any{}
		if ts == 0 {
			fields["distance"] = 0.0
		}
		if ts == 4 {
			fields["distance"] = 40.0
		}
		if err := s.Put(sink.Message{Name: "record", Timestamp: ts, HasTimestamp: true, Fields: fields}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	paused := map[uint32]bool{2: true}
	err := Run(s, Options{Units: "raw", FixData: map[string]bool{"distance": true}}, paused, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	col, ok := s.RecordColumn("distance")
	if !ok {
		t.Fatal("expected distance column")
	}
	want := map[uint32]any{0: 0.0, 1: 10.0, 2: nil, 3: 30.0, 4: 40.0}
	for ts, w := range want {
		if got := col[ts]; got != w {
			t.Fatalf("distance[%d] = %v, want %v", ts, got, w)
		}
	}
}

func TestCadenceMissingIsZeroNotInterpolated(t *testing.T) {
	s := sink.NewInMemorySink()
	if err := s.Put(sink.Message{Name: "record", Timestamp: 0, HasTimestamp: true, Fields: map[string]any{"cadence": int64(80)}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(sink.Message{Name: "record", Timestamp: 1, HasTimestamp: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(sink.Message{Name: "record", Timestamp: 2, HasTimestamp: true, Fields: map[string]any{"cadence": int64(90)}}); err != nil {
		t.Fatal(err)
	}

	if err := Run(s, Options{Units: "raw", FixData: map[string]bool{"cadence": true}}, nil, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	col, _ := s.RecordColumn("cadence")
	if col[1] != int64(0) {
		t.Fatalf("cadence[1] = %v, want 0", col[1])
	}
}

func TestSignedRepairIsIdempotent(t *testing.T) {
	col := map[uint32]any{0: uint64(0xE2)}
	RepairSigned(col, 2, nil)
	once := col[0]
	RepairSigned(col, 2, nil)
	twice := col[0]
	if once != twice {
		t.Fatalf("repair not idempotent: %v != %v", once, twice)
	}
}

func TestUnitConversionTemperatureToFahrenheit(t *testing.T) {
	s := sink.NewInMemorySink()
	if err := s.Put(sink.Message{Name: "record", Timestamp: 0, HasTimestamp: true, Fields: map[string]any{"temperature": 0.0}}); err != nil {
		t.Fatal(err)
	}
	if err := Run(s, Options{Units: "statute"}, nil, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	col, _ := s.RecordColumn("temperature")
	if col[0] != 32.0 {
		t.Fatalf("0C -> F = %v, want 32", col[0])
	}
}

func TestDensifyRecordTimestamps(t *testing.T) {
	s := sink.NewInMemorySink()
	for _, ts := range []uint32{10, 12} {
		if err := s.Put(sink.Message{Name: "record", Timestamp: ts, HasTimestamp: true}); err != nil {
			t.Fatal(err)
		}
	}
	if err := Run(s, Options{Units: "raw", DataEverySecond: true}, nil, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	col, _ := s.RecordColumn("timestamp")
	if len(col) != 3 {
		t.Fatalf("expected 3 densified seconds, got %d", len(col))
	}
	if _, ok := col[11]; !ok {
		t.Fatal("expected densified second 11 to be present")
	}
}
