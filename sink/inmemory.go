package sink

import "fmt"

// noCollapseMessages never collapse a length-1 column to a bare scalar;
// developer_data field sequences must stay arrays so (developer_data_index,
// field_number) pairing survives even when only one value was ever seen.
var noCollapseMessages = map[string]bool{"developer_data": true}

// InMemorySink is the columnar store of §4.4.1: `message -> field ->
// column`, with "record" fields keyed by timestamp rather than
// insertion-ordered.
type InMemorySink struct {
	nonRecord map[string]map[string][]any
	record    map[string]map[uint32]any

	// timestampOriginal is set by the post-processor's duplicate-prune
	// phase; absent until then.
	timestampOriginal []any
}

// NewInMemorySink returns an empty sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{
		nonRecord: make(map[string]map[string][]any),
		record:    make(map[string]map[uint32]any),
	}
}

// Put appends or indexes msg's fields into the store. Record fields use
// first-occurrence-wins semantics per timestamp key: a later message
// sharing a timestamp with an earlier one does not overwrite it, which is
// how the duplicate-timestamp prune (§4.5 phase 3) is satisfied by
// construction rather than as a separate rewrite pass.
func (s *InMemorySink) Put(msg Message) error {
	if msg.Name == "record" {
		if !msg.HasTimestamp {
			return fmt.Errorf("sink: record message missing resolved timestamp")
		}
		s.putRecordFieldFirstWins("timestamp", msg.Timestamp, msg.Timestamp)
		for field, v := range msg.Fields {
			s.putRecordFieldFirstWins(field, msg.Timestamp, v)
		}
		return nil
	}

	fields, ok := s.nonRecord[msg.Name]
	if !ok {
		fields = make(map[string][]any)
		s.nonRecord[msg.Name] = fields
	}
	for field, v := range msg.Fields {
		fields[field] = append(fields[field], v)
	}
	return nil
}

func (s *InMemorySink) putRecordFieldFirstWins(field string, ts uint32, v any) {
	col, ok := s.record[field]
	if !ok {
		col = make(map[uint32]any)
		s.record[field] = col
	}
	if _, exists := col[ts]; exists {
		return
	}
	col[ts] = v
}

// Flush and Close are no-ops for the in-memory sink; everything is already
// resident.
func (s *InMemorySink) Flush() error { return nil }
func (s *InMemorySink) Close() error { return nil }

// Get returns the column for (message, field). Non-record columns of length
// 1 collapse to a bare scalar, except inside developer_data. Record columns
// are always returned as the full timestamp-keyed map.
func (s *InMemorySink) Get(message, field string) (any, error) {
	if message == "record" {
		if field == "timestamp_original" {
			if s.timestampOriginal == nil {
				return nil, fmt.Errorf("%w: record.timestamp_original", ErrUnknownField)
			}
			return s.timestampOriginal, nil
		}
		col, ok := s.record[field]
		if !ok {
			return nil, fmt.Errorf("%w: record.%s", ErrUnknownField, field)
		}
		return col, nil
	}

	fields, ok := s.nonRecord[message]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, message)
	}
	seq, ok := fields[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, message, field)
	}
	if len(seq) == 1 && !noCollapseMessages[message] {
		return seq[0], nil
	}
	return seq, nil
}

// RecordColumn returns the raw timestamp-keyed map for a record field,
// without the length-1 collapse, for use by the post-processor/pause/HR
// packages that need to mutate it in place.
func (s *InMemorySink) RecordColumn(field string) (map[uint32]any, bool) {
	col, ok := s.record[field]
	return col, ok
}

// SetRecordColumn replaces a record field's column wholesale, used by the
// developer-field record-column rewrite (§4.3), by HR burst reassembly, and
// by post-processing phases that rebuild a column (densify, interpolate).
func (s *InMemorySink) SetRecordColumn(field string, col map[uint32]any) {
	s.record[field] = col
}

// RecordFieldNames returns every field name ever put into the record store,
// including "timestamp".
func (s *InMemorySink) RecordFieldNames() []string {
	names := make([]string, 0, len(s.record))
	for name := range s.record {
		names = append(names, name)
	}
	return names
}

// NonRecordColumn returns the raw ordered sequence for a non-record field.
func (s *InMemorySink) NonRecordColumn(message, field string) ([]any, bool) {
	fields, ok := s.nonRecord[message]
	if !ok {
		return nil, false
	}
	seq, ok := fields[field]
	return seq, ok
}

// SetNonRecordColumn replaces a non-record field's ordered sequence, used by
// the post-processor's epoch shift and unit conversion.
func (s *InMemorySink) SetNonRecordColumn(message, field string, seq []any) {
	fields, ok := s.nonRecord[message]
	if !ok {
		fields = make(map[string][]any)
		s.nonRecord[message] = fields
	}
	fields[field] = seq
}

// SetTimestampOriginal installs the record.timestamp_original sequence
// (§4.5 phase 3). In this implementation the "original" sequence is the
// post-dedup ordering, matching the source behaviour that named this field
// before it actually stopped discarding duplicates (see SPEC_FULL.md §12).
func (s *InMemorySink) SetTimestampOriginal(vals []any) {
	s.timestampOriginal = vals
}

// Messages returns every non-record message name ever put into the store.
func (s *InMemorySink) Messages() []string {
	names := make([]string, 0, len(s.nonRecord))
	for name := range s.nonRecord {
		names = append(names, name)
	}
	return names
}

// NonRecordFieldNames returns every field name ever put onto the given
// non-record message.
func (s *InMemorySink) NonRecordFieldNames(message string) []string {
	fields, ok := s.nonRecord[message]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names
}
