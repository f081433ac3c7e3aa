// Package event defines the Event type passed from sources to outputs.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Well-known field names.
const (
	FieldMessage   = "message"
	FieldTimestamp = "@timestamp"
	FieldTags      = "tags"
	FieldLevel     = "level"
)

// Well-known metadata keys set by sources.
const (
	MetaSource = "source"
	MetaStream = "stream"
	MetaSeq    = "seq"
)

// Event is a single structured log record.
// Fields are serialized by ToJSON; metadata never is.
type Event struct {
	fields   map[string]any
	metadata map[string]any
}

// New creates an empty event.
func New() *Event {
	return &Event{fields: make(map[string]any, 4)}
}

// NewWithFields creates an event holding a copy of fields.
func NewWithFields(fields map[string]any) *Event {
	e := &Event{fields: make(map[string]any, len(fields))}
	maps.Copy(e.fields, fields)
	return e
}

// SetField sets a top-level field, replacing any previous value.
func (e *Event) SetField(name string, value any) {
	e.fields[name] = value
}

// GetField returns the value of a top-level field and whether it was set.
func (e *Event) GetField(name string) (any, bool) {
	v, ok := e.fields[name]
	return v, ok
}

// GetString returns a field as a string, or "" if unset or not a string.
func (e *Event) GetString(name string) string {
	s, _ := e.fields[name].(string)
	return s
}

// RemoveField deletes a field and returns its previous value.
func (e *Event) RemoveField(name string) any {
	v := e.fields[name]
	delete(e.fields, name)
	return v
}

// Includes reports whether the field is set.
func (e *Event) Includes(name string) bool {
	_, ok := e.fields[name]
	return ok
}

// Fields returns a shallow copy of the event fields.
func (e *Event) Fields() map[string]any {
	return maps.Clone(e.fields)
}

// Len returns the number of fields.
func (e *Event) Len() int {
	return len(e.fields)
}

// SetMetadata stores a value that travels with the event but is not serialized.
func (e *Event) SetMetadata(key string, value any) {
	if e.metadata == nil {
		e.metadata = make(map[string]any, 3)
	}
	e.metadata[key] = value
}

// GetMetadata returns a metadata value and whether it was set.
func (e *Event) GetMetadata(key string) (any, bool) {
	v, ok := e.metadata[key]
	return v, ok
}

// AddTag appends tag to the tags field unless it is already present.
func (e *Event) AddTag(tag string) {
	var tags []string
	switch v := e.fields[FieldTags].(type) {
	case []string:
		tags = v
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	case string:
		tags = []string{v}
	}
	if slices.Contains(tags, tag) {
		return
	}
	e.fields[FieldTags] = append(tags, tag)
}

// HasTag reports whether tag is present in the tags field.
func (e *Event) HasTag(tag string) bool {
	switch v := e.fields[FieldTags].(type) {
	case []string:
		return slices.Contains(v, tag)
	case []any:
		return slices.Contains(v, any(tag))
	case string:
		return v == tag
	}
	return false
}

// Clone returns an event with copies of the field and metadata maps.
// Nested values are shared.
func (e *Event) Clone() *Event {
	return &Event{
		fields:   maps.Clone(e.fields),
		metadata: maps.Clone(e.metadata),
	}
}

// ToJSON renders the fields as a single-line JSON object with sorted keys.
func (e *Event) ToJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.fields); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// String returns the JSON form, or a placeholder when it cannot be rendered.
func (e *Event) String() string {
	b, err := e.ToJSON()
	if err != nil {
		return fmt.Sprintf("<unserializable event: %v>", err)
	}
	return string(b)
}

// SerializationError reports that an event could not be rendered to text.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return "event: serialize: " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
