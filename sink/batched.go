package sink

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// BufferThreshold is the message count (across every table) that triggers
// an implicit flush (§4.4.2).
const BufferThreshold = 1000

// BatchedTableSinkOptions configures Open. TableName is sanitized
// (non-alphanumeric -> '_') before use as the per-table name prefix.
type BatchedTableSinkOptions struct {
	TableName      string
	DataSourceName string
	Username       string
	Password       string
}

type tableState struct {
	name    string
	created bool
	columns map[string]bool
}

// BatchedTableSink buffers decoded messages and flushes them as bulk inserts
// against an abstract relational back-end (here, SQLite via database/sql).
// The core only depends on the capability set described in §9 design
// notes: create table, add columns, insert batch, query column, drop all.
type BatchedTableSink struct {
	db     *sqlx.DB
	logger zerolog.Logger
	prefix string

	mu       sync.Mutex
	tables   map[string]*tableState
	buffered map[string][]Message
	pending  int

	queryCache map[string]any

	pacer     Pacer
	paceEvery int
}

// Open connects to a SQLite database at opts.DataSourceName and returns a
// sink that writes tables named "<prefix>_<message_name>".
func Open(opts BatchedTableSinkOptions, logger zerolog.Logger) (*BatchedTableSink, error) {
	db, err := sqlx.Open("sqlite3", opts.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sink: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: ping database: %w", err)
	}
	return &BatchedTableSink{
		db:         db,
		logger:     logger,
		prefix:     sanitizeIdentifier(opts.TableName),
		tables:     make(map[string]*tableState),
		buffered:   make(map[string][]Message),
		queryCache: make(map[string]any),
	}, nil
}

func (s *BatchedTableSink) tableName(message string) string {
	return s.prefix + "_" + sanitizeIdentifier(message)
}

// Put buffers msg for its table, applying the record mandatory-field drop
// rule and the hrv.times JSON rewrite before buffering.
func (s *BatchedTableSink) Put(msg Message) error {
	if msg.Name == "record" && !hasMandatoryRecordFields(msg) {
		s.logger.Debug().Str("message", msg.Name).Msg("dropping record missing mandatory field set")
		return nil
	}
	if msg.Name == "hrv" {
		msg = rewriteHRVTimes(msg)
	}

	s.mu.Lock()
	table := s.tableName(msg.Name)
	s.buffered[table] = append(s.buffered[table], msg)
	s.pending++
	needFlush := s.pending >= BufferThreshold
	s.mu.Unlock()

	if needFlush {
		return s.Flush()
	}
	return nil
}

func hasMandatoryRecordFields(msg Message) bool {
	if !msg.HasTimestamp {
		return false
	}
	for _, f := range []string{"position_lat", "position_long", "distance"} {
		if _, ok := msg.Fields[f]; !ok {
			return false
		}
	}
	return true
}

func rewriteHRVTimes(msg Message) Message {
	raw, ok := msg.Fields["times"]
	if !ok {
		return msg
	}
	arr, ok := raw.([]any)
	if !ok {
		return msg
	}
	cleaned := make([]any, len(arr))
	for i, v := range arr {
		if f, ok := v.(float64); ok && f == 65.535 {
			cleaned[i] = nil
			continue
		}
		cleaned[i] = v
	}
	encoded, err := json.Marshal(cleaned)
	if err != nil {
		return msg
	}
	out := Message{Name: msg.Name, Timestamp: msg.Timestamp, HasTimestamp: msg.HasTimestamp, Fields: make(map[string]any, len(msg.Fields))}
	for k, v := range msg.Fields {
		out.Fields[k] = v
	}
	out.Fields["times"] = string(encoded)
	return out
}

// Flush persists every buffered message, one multi-row INSERT per table.
func (s *BatchedTableSink) Flush() error {
	s.mu.Lock()
	buffered := s.buffered
	s.buffered = make(map[string][]Message)
	s.pending = 0
	s.mu.Unlock()

	for table, messages := range buffered {
		if len(messages) == 0 {
			continue
		}
		if err := s.ensureTable(table, messages); err != nil {
			return err
		}
		if err := s.insertBatch(table, messages); err != nil {
			return err
		}
	}
	return nil
}

func (s *BatchedTableSink) ensureTable(table string, messages []Message) error {
	st, ok := s.tables[table]
	if !ok {
		st = &tableState{name: table, columns: map[string]bool{}}
		s.tables[table] = st
	}

	isRecord := strings.HasSuffix(table, "_record")
	columns := unionColumns(messages)
	if isRecord {
		columns = append(columns, mandatoryRecordColumns...)
		columns = append(columns, "spatial_point", "paused", "stopped")
	}

	if !st.created {
		var cols []string
		cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT")
		seen := map[string]bool{}
		for _, c := range columns {
			if seen[c] {
				continue
			}
			seen[c] = true
			cols = append(cols, fmt.Sprintf("%s %s", sanitizeIdentifier(c), recordAwareColumnType(c, isRecord, messages)))
			st.columns[c] = true
		}
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("sink: create table %s: %w", table, err)
		}
		if isRecord {
			if _, err := s.db.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_spatial ON %s (spatial_point)", table, table)); err != nil {
				return fmt.Errorf("sink: create spatial index: %w", err)
			}
			if _, err := s.db.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_distance ON %s (distance)", table, table)); err != nil {
				return fmt.Errorf("sink: create distance index: %w", err)
			}
			if _, err := s.db.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_timestamp ON %s (timestamp)", table, table)); err != nil {
				return fmt.Errorf("sink: create timestamp index: %w", err)
			}
		}
		st.created = true
		return nil
	}

	for _, c := range columns {
		if st.columns[c] {
			continue
		}
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, sanitizeIdentifier(c), recordAwareColumnType(c, isRecord, messages))
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("sink: add column %s.%s: %w", table, c, err)
		}
		st.columns[c] = true
	}
	return nil
}

func (s *BatchedTableSink) insertBatch(table string, messages []Message) error {
	st := s.tables[table]
	isRecord := strings.HasSuffix(table, "_record")

	colNames := make([]string, 0, len(st.columns))
	for c := range st.columns {
		colNames = append(colNames, c)
	}

	placeholders := make([]string, 0, len(messages))
	args := make([]any, 0, len(messages)*len(colNames))
	for _, m := range messages {
		row := make([]string, len(colNames))
		for i, c := range colNames {
			row[i] = "?"
			args = append(args, rowValue(m, c, isRecord))
		}
		placeholders = append(placeholders, "("+strings.Join(row, ", ")+")")
	}

	quoted := make([]string, len(colNames))
	for i, c := range colNames {
		quoted[i] = sanitizeIdentifier(c)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return fmt.Errorf("sink: insert into %s: %w", table, err)
	}
	return nil
}

func rowValue(m Message, column string, isRecord bool) any {
	if isRecord {
		switch column {
		case "timestamp":
			return m.Timestamp
		case "spatial_point":
			if p, ok := pointLiteral(m.Fields["position_lat"], m.Fields["position_long"]); ok {
				return p
			}
			return nil
		case "paused", "stopped":
			return nil
		}
	}
	if v, ok := m.Fields[column]; ok {
		return v
	}
	return nil
}

// DropAll drops every table this sink has created, releasing the database
// handle's resources (§3 lifecycles: "callers must explicitly request drop
// to release them").
func (s *BatchedTableSink) DropAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for table := range s.tables {
		if _, err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("sink: drop table %s: %w", table, err)
		}
		delete(s.tables, table)
	}
	s.queryCache = make(map[string]any)
	return nil
}

// Close releases the underlying database handle.
func (s *BatchedTableSink) Close() error {
	return s.db.Close()
}

// Get returns a lazy, cached column view for (message, field): an ordered
// sequence for non-record messages, or a timestamp-keyed map for record
// when a timestamp column exists. At most one query is issued per pair.
func (s *BatchedTableSink) Get(message, field string) (any, error) {
	cacheKey := message + "." + field
	s.mu.Lock()
	if v, ok := s.queryCache[cacheKey]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	table := s.tableName(message)
	col := sanitizeIdentifier(field)
	isRecord := message == "record"

	var result any
	if isRecord {
		rows, err := s.db.Query(fmt.Sprintf("SELECT timestamp, %s FROM %s ORDER BY timestamp", col, table))
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrUnknownField, message, field, err)
		}
		defer rows.Close()
		out := make(map[uint32]any)
		for rows.Next() {
			var ts uint32
			var v any
			if err := rows.Scan(&ts, &v); err != nil {
				return nil, fmt.Errorf("sink: scan %s.%s: %w", message, field, err)
			}
			out[ts] = v
		}
		result = out
	} else {
		rows, err := s.db.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY id", col, table))
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrUnknownField, message, field, err)
		}
		defer rows.Close()
		var out []any
		for rows.Next() {
			var v any
			if err := rows.Scan(&v); err != nil {
				return nil, fmt.Errorf("sink: scan %s.%s: %w", message, field, err)
			}
			out = append(out, v)
		}
		result = out
	}

	s.mu.Lock()
	s.queryCache[cacheKey] = result
	s.mu.Unlock()
	return result, nil
}
