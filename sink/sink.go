// Package sink implements the two MessageSink back-ends described in §4.4:
// an in-memory columnar store and a buffered relational table sink built on
// an abstract batch-sink capability set.
package sink

import "fmt"

// ErrUnknownMessage is returned by Get when the message name was never
// observed during decode.
var ErrUnknownMessage = fmt.Errorf("sink: unknown message")

// ErrUnknownField is returned by Get when the message is known but the
// field name was never observed on it.
var ErrUnknownField = fmt.Errorf("sink: unknown field")

// Message is one decoded FIT message handed to a sink: a profile-resolved
// name and a set of already scale/offset-applied field values. Timestamp is
// only meaningful when Name == "record".
type Message struct {
	Name         string
	Fields       map[string]any
	Timestamp    uint32
	HasTimestamp bool
}

// MessageSink is the abstract destination for decoded messages (§2, §9
// design notes: "Optional relational back-end").
type MessageSink interface {
	Put(msg Message) error
	Flush() error
	Close() error
}
