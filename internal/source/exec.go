package source

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/logstash-plugins/go-output-example/internal/codec"
	"github.com/logstash-plugins/go-output-example/internal/event"
)

// ExecSource executes a command and streams its stdout/stderr as events.
type ExecSource struct {
	command string
	args    []string
	codec   codec.Codec
	seq     atomic.Uint64
	failure
}

// NewExecSource creates a source that runs the given command with arguments.
func NewExecSource(command string, args []string, c codec.Codec) *ExecSource {
	if c == nil {
		c = codec.Plain{}
	}
	return &ExecSource{
		command: command,
		args:    args,
		codec:   c,
	}
}

// Name returns the source identifier.
func (s *ExecSource) Name() string {
	return fmt.Sprintf("exec:%s", s.command)
}

// Start executes the command and returns a channel of events.
// The channel is closed when the command exits or ctx is cancelled. Read
// errors and a failed exit are reported by Err; a cancelled run is not.
func (s *ExecSource) Start(ctx context.Context) (<-chan *event.Event, error) {
	cmd := exec.CommandContext(ctx, s.command, s.args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	ch := make(chan *event.Event, chanSize)
	var wg sync.WaitGroup
	wg.Add(2)

	go s.readStream(ctx, "stdout", stdoutPipe, ch, &wg)
	go s.readStream(ctx, "stderr", stderrPipe, ch, &wg)

	go func() {
		defer close(ch)
		wg.Wait()
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			s.fail(fmt.Errorf("%s: %w", s.command, err))
		}
	}()

	return ch, nil
}

// readStream reads lines from a pipe and sends them to the channel.
func (s *ExecSource) readStream(ctx context.Context, stream string, r io.Reader, ch chan<- *event.Event, wg *sync.WaitGroup) {
	defer wg.Done()

	lr := &lineReader{name: s.Name(), stream: stream, codec: s.codec, seq: &s.seq}
	ok, err := lr.run(ctx, r, ch)
	if err != nil {
		s.fail(fmt.Errorf("%s %s: %w", s.command, stream, err))
	}
	if !ok || err != nil {
		// Drain so the command is not blocked on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}
