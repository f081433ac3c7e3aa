// Package plugin defines the output plugin contract and the registry the
// pipeline uses to find outputs by name.
package plugin

import (
	"context"
	"io"

	"github.com/logstash-plugins/go-output-example/internal/config"
	"github.com/logstash-plugins/go-output-example/internal/event"
)

// Output receives batches of events from the pipeline.
//
// Emit is called from a single goroutine, one batch at a time. Stop may be
// called from any goroutine at any time, including while Emit is running.
// Implementations may check the stop request between events; doing so is
// optional.
type Output interface {
	// Emit writes the events in order.
	Emit(events []*event.Event) error

	// Stop requests shutdown. It must not block.
	Stop()

	// AwaitStop blocks until the output has stopped or ctx is done.
	AwaitStop(ctx context.Context) error

	// ConfigSchema lists every setting the output recognizes.
	ConfigSchema() []config.Setting
}

// Context carries host information handed to a plugin at construction.
type Context struct {
	ID       string
	Pipeline string
	Stdout   io.Writer // process output for plugins that print; nil means os.Stdout
}

// Factory constructs an output from its settings.
type Factory func(cfg *config.Configuration, ctx Context) (Output, error)
