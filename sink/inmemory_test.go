package sink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemorySinkRecordColumnsKeyedByTimestamp(t *testing.T) {
	s := NewInMemorySink()

	require.NoError(t, s.Put(Message{Name: "record", Timestamp: 10, HasTimestamp: true, Fields: map[string]any{"distance": 0.0}}))
	require.NoError(t, s.Put(Message{Name: "record", Timestamp: 11, HasTimestamp: true, Fields: map[string]any{"distance": 10.0}}))

	col, err := s.Get("record", "distance")
	require.NoError(t, err)
	m, ok := col.(map[uint32]any)
	require.True(t, ok)
	require.Equal(t, 0.0, m[10])
	require.Equal(t, 10.0, m[11])
}

func TestInMemorySinkNonRecordCollapsesSingleton(t *testing.T) {
	s := NewInMemorySink()
	require.NoError(t, s.Put(Message{Name: "file_id", Fields: map[string]any{"manufacturer": uint64(1)}}))

	v, err := s.Get("file_id", "manufacturer")
	require.NoError(t, err)
	require.Equal(t, uint64(1), v)
}

func TestInMemorySinkNonRecordPreservesOrderAsSequence(t *testing.T) {
	s := NewInMemorySink()
	require.NoError(t, s.Put(Message{Name: "lap", Fields: map[string]any{"total_distance": 100.0}}))
	require.NoError(t, s.Put(Message{Name: "lap", Fields: map[string]any{"total_distance": 200.0}}))

	v, err := s.Get("lap", "total_distance")
	require.NoError(t, err)
	seq, ok := v.([]any)
	require.True(t, ok)
	require.Equal(t, []any{100.0, 200.0}, seq)
}

func TestInMemorySinkUnknownMessageErrors(t *testing.T) {
	s := NewInMemorySink()
	_, err := s.Get("session", "avg_power")
	require.ErrorIs(t, err, ErrUnknownMessage)
}

func TestInMemorySinkDeveloperDataNeverCollapses(t *testing.T) {
	s := NewInMemorySink()
	require.NoError(t, s.Put(Message{Name: "developer_data", Fields: map[string]any{"dev_power": 200.0}}))

	v, err := s.Get("developer_data", "dev_power")
	require.NoError(t, err)
	_, ok := v.([]any)
	require.True(t, ok, "developer_data columns must stay arrays even at length 1")
}
