package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/logstash-plugins/go-output-example/internal/codec"
	"github.com/logstash-plugins/go-output-example/internal/event"
)

// pollInterval is how often a followed file is checked for new data.
var pollInterval = 100 * time.Millisecond

// FileSource reads events from a file, optionally following new writes (tail -f).
type FileSource struct {
	path   string
	follow bool
	codec  codec.Codec
	seq    atomic.Uint64
	failure
}

// NewFileSource creates a source that reads from a file.
// If follow is true, it continues reading as new lines are appended.
func NewFileSource(path string, follow bool, c codec.Codec) *FileSource {
	if c == nil {
		c = codec.Plain{}
	}
	return &FileSource{
		path:   path,
		follow: follow,
		codec:  c,
	}
}

// Name returns the source identifier.
func (s *FileSource) Name() string {
	return fmt.Sprintf("file:%s", s.path)
}

// Start opens the file and returns a channel of events.
// A read error, including a line longer than the line limit, ends the
// source and is reported by Err.
func (s *FileSource) Start(ctx context.Context) (<-chan *event.Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", s.path, err)
	}

	ch := make(chan *event.Event, chanSize)
	lr := &lineReader{name: s.Name(), stream: "file", codec: s.codec, seq: &s.seq}

	go func() {
		defer close(ch)
		defer f.Close()

		if err := s.read(ctx, lr, f, ch); err != nil {
			s.fail(fmt.Errorf("read %s: %w", s.path, err))
		}
	}()

	return ch, nil
}

// read sends complete lines from r. At EOF a trailing partial line is sent
// when not following; when following it is kept until its newline arrives.
func (s *FileSource) read(ctx context.Context, lr *lineReader, r io.Reader, ch chan<- *event.Event) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxLineLength {
			return bufio.ErrTooLong
		}

		switch {
		case err == nil:
			if !lr.send(ctx, trimEOL(line), ch) {
				return nil
			}
			line = line[:0]
		case errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			if !s.follow {
				if len(line) > 0 {
					lr.send(ctx, trimEOL(line), ch)
				}
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
		default:
			return err
		}
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}
