// Package source defines the Source interface and common utilities for event input.
package source

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/logstash-plugins/go-output-example/internal/codec"
	"github.com/logstash-plugins/go-output-example/internal/event"
)

// Source reads lines from an input and emits decoded events on a channel.
// Implementations must close the returned channel when the source is exhausted
// or the context is cancelled.
type Source interface {
	// Start begins reading from the source. The returned channel will receive
	// events until the source is exhausted or ctx is cancelled.
	Start(ctx context.Context) (<-chan *event.Event, error)

	// Name returns a human-readable identifier for this source.
	Name() string
}

// TimestampLayout is the format of the @timestamp field set by sources.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	chanSize      = 256
	maxLineLength = 1024 * 1024
)

// now is replaced in tests.
var now = time.Now

// failure records the first error that ended a source early. Sources embed
// it to expose Err.
type failure struct {
	err atomic.Pointer[error]
}

func (f *failure) fail(err error) {
	if err != nil {
		f.err.CompareAndSwap(nil, &err)
	}
}

// Err returns the error that ended the source, or nil if it ran to
// completion or was cancelled.
func (f *failure) Err() error {
	if p := f.err.Load(); p != nil {
		return *p
	}
	return nil
}

// lineReader decodes lines from r and sends them on ch. It returns false if
// ctx was cancelled before r was exhausted.
type lineReader struct {
	name   string
	stream string
	codec  codec.Codec
	seq    *atomic.Uint64
}

func (lr *lineReader) run(ctx context.Context, r io.Reader, ch chan<- *event.Event) (bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	for scanner.Scan() {
		if !lr.send(ctx, scanner.Bytes(), ch) {
			return false, nil
		}
	}
	return true, scanner.Err()
}

func (lr *lineReader) send(ctx context.Context, line []byte, ch chan<- *event.Event) bool {
	e := lr.codec.Decode(line)
	if !e.Includes(event.FieldTimestamp) {
		e.SetField(event.FieldTimestamp, now().UTC().Format(TimestampLayout))
	}
	e.SetMetadata(event.MetaSource, lr.name)
	e.SetMetadata(event.MetaStream, lr.stream)
	e.SetMetadata(event.MetaSeq, lr.seq.Add(1))

	select {
	case ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
