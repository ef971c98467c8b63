package sink

import (
	"database/sql"
	"fmt"
)

// RecordRow is the subset of a persisted record row handed to a
// StopPointPredicate.
type RecordRow struct {
	ID        int64
	Timestamp uint32
	Distance  float64
}

// StopPointPredicate decides whether row should be marked stopped (§4.8).
// The core never supplies a default; callers own the notion of "stopped".
type StopPointPredicate func(row RecordRow) bool

// Pacer is invoked at bounded row counts inside ComputeStopPoints' scan so
// an embedding host can extend a work lease. It must not block (§5).
type Pacer interface {
	Pace()
}

// SetPacer installs a Pacer invoked every `every` rows scanned by
// ComputeStopPoints. every <= 0 disables pacing.
func (s *BatchedTableSink) SetPacer(pacer Pacer, every int) {
	s.pacer = pacer
	s.paceEvery = every
}

const stopPointBatchSize = 1000

// ComputeStopPoints walks the record table in ascending-timestamp batches,
// enforcing monotonic non-decreasing distance and marking rows the
// predicate considers stopped. Only meaningful for BatchedTableSink: the
// in-memory sink holds no separate "stopped" column.
func (s *BatchedTableSink) ComputeStopPoints(isStopped StopPointPredicate) error {
	table := s.tableName("record")
	paceIter := 0

	var lastID int64
	var distDelta float64
	var prevDistance float64
	havePrev := false

	for {
		rows, err := s.db.Query(
			fmt.Sprintf("SELECT id, timestamp, distance FROM %s WHERE id > ? ORDER BY timestamp ASC, id ASC LIMIT ?", table),
			lastID, stopPointBatchSize,
		)
		if err != nil {
			return fmt.Errorf("sink: scan record table for stop points: %w", err)
		}

		count := 0
		type pending struct {
			id       int64
			distance float64
			stopped  bool
			rewrite  bool
		}
		var batch []pending

		for rows.Next() {
			var id int64
			var ts uint32
			var distance sql.NullFloat64
			if err := rows.Scan(&id, &ts, &distance); err != nil {
				rows.Close()
				return fmt.Errorf("sink: scan stop-point row: %w", err)
			}
			count++
			lastID = id

			if s.pacer != nil && s.paceEvery > 0 {
				paceIter++
				if paceIter%s.paceEvery == 0 {
					s.pacer.Pace()
				}
			}

			adjusted := distance.Float64 + distDelta
			rewrite := false
			if havePrev && adjusted < prevDistance {
				shortfall := prevDistance - adjusted
				distDelta += shortfall
				adjusted = prevDistance
				rewrite = true
			}
			prevDistance = adjusted
			havePrev = true

			stopped := isStopped(RecordRow{ID: id, Timestamp: ts, Distance: adjusted})
			batch = append(batch, pending{id: id, distance: adjusted, stopped: stopped, rewrite: rewrite})
		}
		rows.Close()

		for _, p := range batch {
			if p.rewrite {
				if _, err := s.db.Exec(fmt.Sprintf("UPDATE %s SET distance = ? WHERE id = ?", table), p.distance, p.id); err != nil {
					return fmt.Errorf("sink: rewrite distance for row %d: %w", p.id, err)
				}
			}
			if p.stopped {
				if _, err := s.db.Exec(fmt.Sprintf("UPDATE %s SET stopped = 1 WHERE id = ?", table), p.id); err != nil {
					return fmt.Errorf("sink: mark row %d stopped: %w", p.id, err)
				}
			}
		}

		if count < stopPointBatchSize {
			break
		}
	}
	return nil
}
