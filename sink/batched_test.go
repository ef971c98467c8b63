package sink

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestSink(t *testing.T) *BatchedTableSink {
	t.Helper()
	s, err := Open(BatchedTableSinkOptions{TableName: "test run!", DataSourceName: ":memory:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBatchedTableSinkSanitizesTableName(t *testing.T) {
	s := openTestSink(t)
	require.Equal(t, "test_run_", s.prefix)
}

func TestBatchedTableSinkDropsRecordMissingMandatoryFields(t *testing.T) {
	s := openTestSink(t)
	require.NoError(t, s.Put(Message{
		Name: "record", Timestamp: 5, HasTimestamp: true,
		Fields: map[string]any{"heart_rate": uint64(120)},
	}))
	require.NoError(t, s.Flush())

	require.NotContains(t, s.tables, s.tableName("record"), "table should not exist when no valid record was ever inserted")
}

func TestBatchedTableSinkInsertAndReadBack(t *testing.T) {
	s := openTestSink(t)
	msg := Message{
		Name: "record", Timestamp: 100, HasTimestamp: true,
		Fields: map[string]any{
			"position_lat":  1000.0,
			"position_long": 2000.0,
			"distance":      42.5,
			"heart_rate":    uint64(130),
		},
	}
	require.NoError(t, s.Put(msg))
	require.NoError(t, s.Flush())

	col, err := s.Get("record", "heart_rate")
	require.NoError(t, err)
	m, ok := col.(map[uint32]any)
	require.True(t, ok)
	require.EqualValues(t, 130, m[100])
}

func TestBatchedTableSinkColumnEvolution(t *testing.T) {
	s := openTestSink(t)
	base := Message{
		Name: "record", Timestamp: 1, HasTimestamp: true,
		Fields: map[string]any{"position_lat": 1.0, "position_long": 1.0, "distance": 0.0},
	}
	require.NoError(t, s.Put(base))
	require.NoError(t, s.Flush())

	withPower := Message{
		Name: "record", Timestamp: 2, HasTimestamp: true,
		Fields: map[string]any{"position_lat": 1.0, "position_long": 1.0, "distance": 1.0, "power": uint64(200)},
	}
	require.NoError(t, s.Put(withPower))
	require.NoError(t, s.Flush())

	col, err := s.Get("record", "power")
	require.NoError(t, err)
	m, ok := col.(map[uint32]any)
	require.True(t, ok)
	require.EqualValues(t, 200, m[2])
}

func TestBatchedTableSinkDropAll(t *testing.T) {
	s := openTestSink(t)
	require.NoError(t, s.Put(Message{
		Name: "record", Timestamp: 1, HasTimestamp: true,
		Fields: map[string]any{"position_lat": 1.0, "position_long": 1.0, "distance": 0.0},
	}))
	require.NoError(t, s.Flush())
	require.NoError(t, s.DropAll())
	require.Empty(t, s.tables)
}

func TestComputeStopPointsEnforcesMonotonicDistance(t *testing.T) {
	s := openTestSink(t)
	for i, d := range []float64{0, 10, 5, 20} {
		require.NoError(t, s.Put(Message{
			Name: "record", Timestamp: uint32(i), HasTimestamp: true,
			Fields: map[string]any{"position_lat": 1.0, "position_long": 1.0, "distance": d},
		}))
	}
	require.NoError(t, s.Flush())

	require.NoError(t, s.ComputeStopPoints(func(row RecordRow) bool { return false }))

	col, err := s.Get("record", "distance")
	require.NoError(t, err)
	m, ok := col.(map[uint32]any)
	require.True(t, ok)
	require.EqualValues(t, 10.0, m[2], "regressing distance should be lifted to the previous row's value")
}
