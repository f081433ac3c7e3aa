// Package codec turns raw input lines into events.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-logfmt/logfmt"

	"github.com/logstash-plugins/go-output-example/internal/config"
	"github.com/logstash-plugins/go-output-example/internal/event"
)

// Tags added when a line cannot be decoded by its codec.
const (
	TagJSONFailure   = "_jsonparsefailure"
	TagLogfmtFailure = "_logfmtparsefailure"
)

// Codec decodes a single line into an event. Decoding never fails: lines a
// codec cannot parse are kept as the message and tagged.
type Codec interface {
	Decode(line []byte) *event.Event
	Name() string
}

// ByName returns the codec registered as name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "plain":
		return Plain{}, nil
	case "json":
		return JSON{}, nil
	case "logfmt":
		return Logfmt{}, nil
	default:
		return nil, &config.ConfigurationError{
			Setting: "input.codec",
			Reason:  fmt.Sprintf("unknown codec %q", name),
		}
	}
}

// Plain stores the line in the message field.
type Plain struct{}

func (Plain) Name() string { return "plain" }

func (Plain) Decode(line []byte) *event.Event {
	e := event.New()
	e.SetField(event.FieldMessage, string(line))
	return e
}

// JSON decodes one JSON object per line.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Decode(line []byte) *event.Event {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		e := Plain{}.Decode(line)
		e.AddTag(TagJSONFailure)
		return e
	}
	return event.NewWithFields(fields)
}

// Logfmt decodes key=value pairs. Keys without a value are set to true.
type Logfmt struct{}

func (Logfmt) Name() string { return "logfmt" }

func (Logfmt) Decode(line []byte) *event.Event {
	fields := make(map[string]any)
	dec := logfmt.NewDecoder(bytes.NewReader(line))
	for dec.ScanRecord() {
		for dec.ScanKeyval() {
			if dec.Value() == nil {
				fields[string(dec.Key())] = true
				continue
			}
			fields[string(dec.Key())] = string(dec.Value())
		}
	}
	if dec.Err() != nil || len(fields) == 0 {
		e := Plain{}.Decode(line)
		e.AddTag(TagLogfmtFailure)
		return e
	}
	if msg, ok := fields["msg"]; ok {
		if _, dup := fields[event.FieldMessage]; !dup {
			fields[event.FieldMessage] = msg
			delete(fields, "msg")
		}
	}
	return event.NewWithFields(fields)
}
