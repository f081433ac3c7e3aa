package source

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/mattn/go-isatty"

	"github.com/logstash-plugins/go-output-example/internal/codec"
	"github.com/logstash-plugins/go-output-example/internal/event"
)

// ReaderSource reads newline-delimited input from an io.Reader.
type ReaderSource struct {
	name  string
	r     io.Reader
	codec codec.Codec
	seq   atomic.Uint64
	failure
}

// NewReaderSource creates a source reading from r.
func NewReaderSource(name string, r io.Reader, c codec.Codec) *ReaderSource {
	if c == nil {
		c = codec.Plain{}
	}
	return &ReaderSource{name: name, r: r, codec: c}
}

// Name returns the source identifier.
func (s *ReaderSource) Name() string {
	return s.name
}

// Start reads from the reader and returns a channel of events.
func (s *ReaderSource) Start(ctx context.Context) (<-chan *event.Event, error) {
	ch := make(chan *event.Event, chanSize)
	lr := &lineReader{name: s.name, stream: s.name, codec: s.codec, seq: &s.seq}

	go func() {
		defer close(ch)
		_, err := lr.run(ctx, s.r, ch)
		s.fail(err)
	}()

	return ch, nil
}

// StdinSource reads events from os.Stdin (pipe mode).
type StdinSource struct {
	*ReaderSource
}

// NewStdinSource creates a source that reads from stdin.
func NewStdinSource(c codec.Codec) *StdinSource {
	return &StdinSource{ReaderSource: NewReaderSource("stdin", os.Stdin, c)}
}

// Interactive reports whether stdin is attached to a terminal rather than a pipe.
func (s *StdinSource) Interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
