package pause

import (
	"testing"

	"github.com/lucasjlepore/fit-decode/sink"
)

func putEvent(t *testing.T, s *sink.InMemorySink, ts uint32, event, eventType int64) {
	t.Helper()
	if err := s.Put(sink.Message{
		Name: "event",
		Fields: map[string]any{
			"timestamp":  ts,
			"event":      event,
			"event_type": eventType,
		},
	}); err != nil {
		t.Fatalf("put event: %v", err)
	}
}

func putRecord(t *testing.T, s *sink.InMemorySink, ts uint32) {
	t.Helper()
	if err := s.Put(sink.Message{Name: "record", Timestamp: ts, HasTimestamp: true}); err != nil {
		t.Fatalf("put record: %v", err)
	}
}

func TestLongPauseStaysPaused(t *testing.T) {
	s := sink.NewInMemorySink()
	for ts := uint32(0); ts <= 200; ts++ {
		putRecord(t, s, ts)
	}
	putEvent(t, s, 50, eventTimer, typeStop)
	putEvent(t, s, 150, eventTimer, typeStart)

	m := Track(s)
	if !m[100] {
		t.Fatal("expected second 100 to be paused")
	}
	if m[49] {
		t.Fatal("expected second 49 to be active")
	}
	if m[150] {
		t.Fatal("expected second 150 (post-start) to be active")
	}
}

func TestShortGapIsRelabeledActive(t *testing.T) {
	s := sink.NewInMemorySink()
	for ts := uint32(0); ts <= 100; ts++ {
		putRecord(t, s, ts)
	}
	putEvent(t, s, 40, eventTimer, typeStop)
	putEvent(t, s, 50, eventTimer, typeStart)

	m := Track(s)
	for ts := uint32(40); ts < 50; ts++ {
		if m[ts] {
			t.Fatalf("second %d: expected gap shorter than threshold to be relabeled active", ts)
		}
	}
}

func TestNoTimerEventsYieldsAllActive(t *testing.T) {
	s := sink.NewInMemorySink()
	for ts := uint32(0); ts <= 10; ts++ {
		putRecord(t, s, ts)
	}
	m := Track(s)
	for ts := uint32(0); ts <= 10; ts++ {
		if m[ts] {
			t.Fatalf("second %d: expected active with no timer events", ts)
		}
	}
}
