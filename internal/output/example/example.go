// Package example implements go_output_example, an output that writes each
// event as one optionally prefixed JSON line.
package example

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/logstash-plugins/go-output-example/internal/config"
	"github.com/logstash-plugins/go-output-example/internal/event"
	"github.com/logstash-plugins/go-output-example/internal/plugin"
)

// Name is the name the output is registered under.
const Name = "go_output_example"

// PrefixSetting is prepended to every line.
var PrefixSetting = config.StringSetting("prefix", "")

// ErrUnrecoverable marks failures after which output correctness can no
// longer be guaranteed.
var ErrUnrecoverable = errors.New("example: unrecoverable output error")

func init() {
	plugin.RegisterOutput(Name, "writes events as prefixed JSON lines to stdout", schema(), New)
}

// Output writes prefixed JSON lines to a stream.
type Output struct {
	id      string
	prefix  string
	w       io.Writer
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

var _ plugin.Output = (*Output)(nil)

// New creates an output writing to ctx.Stdout, or os.Stdout when unset.
func New(cfg *config.Configuration, ctx plugin.Context) (plugin.Output, error) {
	o, err := NewWithWriter(cfg, ctx, ctx.Stdout)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// NewWithWriter creates an output writing to w.
func NewWithWriter(cfg *config.Configuration, ctx plugin.Context, w io.Writer) (*Output, error) {
	if err := config.Validate(cfg, schema()); err != nil {
		return nil, err
	}
	prefix, err := config.Get(cfg, PrefixSetting)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stdout
	}
	return &Output{
		id:     ctx.ID,
		prefix: prefix,
		w:      w,
		done:   make(chan struct{}),
	}, nil
}

// Emit writes one line per event until the batch ends or Stop is called.
// Serialization failures wrap ErrUnrecoverable; write errors are returned as is.
func (o *Output) Emit(events []*event.Event) error {
	var line []byte
	for i, e := range events {
		if o.stopped.Load() {
			return nil
		}
		b, err := e.ToJSON()
		if err != nil {
			return fmt.Errorf("%w: event %d: %w", ErrUnrecoverable, i, err)
		}
		line = append(line[:0], o.prefix...)
		line = append(line, b...)
		line = append(line, '\n')
		if _, err := o.w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// Stop sets the stop flag and releases AwaitStop callers.
func (o *Output) Stop() {
	o.stopped.Store(true)
	o.once.Do(func() { close(o.done) })
}

// Stopped reports whether Stop has been called.
func (o *Output) Stopped() bool {
	return o.stopped.Load()
}

// Done is closed once Stop has been called.
func (o *Output) Done() <-chan struct{} {
	return o.done
}

// AwaitStop blocks until Stop has been called. It returns ctx.Err() if ctx
// ends first.
func (o *Output) AwaitStop(ctx context.Context) error {
	select {
	case <-o.done:
		return nil
	default:
	}
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConfigSchema returns the recognized settings.
func (o *Output) ConfigSchema() []config.Setting {
	return schema()
}

// ID returns the plugin id assigned by the host.
func (o *Output) ID() string {
	return o.id
}

func schema() []config.Setting {
	return []config.Setting{PrefixSetting}
}
