// Package pipeline orchestrates Source → Parser → Filter → Output processing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/logstash-plugins/go-output-example/internal/buffer"
	"github.com/logstash-plugins/go-output-example/internal/event"
	"github.com/logstash-plugins/go-output-example/internal/filter"
	"github.com/logstash-plugins/go-output-example/internal/monitor"
	"github.com/logstash-plugins/go-output-example/internal/parser"
	"github.com/logstash-plugins/go-output-example/internal/plugin"
	"github.com/logstash-plugins/go-output-example/internal/source"
)

// Config holds pipeline configuration.
type Config struct {
	Source     source.Source
	Grok       *parser.GrokParser // optional
	Filters    *filter.Chain      // optional
	Output     plugin.Output
	Stats      *monitor.Stats // optional
	Logger     *slog.Logger   // optional
	BatchSize  int
	BatchDelay time.Duration // flush a partial batch after this long without a new event; 0 waits for a full batch
}

// Run executes the pipeline: reads from the source, parses and filters each
// event, and hands batches to the output. It blocks until the source is
// exhausted or ctx is cancelled, then stops the output and waits for it.
// Cancellation is a normal shutdown and returns nil. A source that ended on
// a read error fails the run after the events it did read are delivered.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Source == nil {
		return fmt.Errorf("pipeline: source is required")
	}
	if cfg.Output == nil {
		return fmt.Errorf("pipeline: output is required")
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("pipeline: batch size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.Stats == nil {
		cfg.Stats = monitor.NewStats()
	}
	ll := cfg.Logger
	if ll == nil {
		ll = slog.New(slog.DiscardHandler)
	}

	srcCtx, cancelSource := context.WithCancel(ctx)
	defer cancelSource()
	ch, err := cfg.Source.Start(srcCtx)
	if err != nil {
		return fmt.Errorf("pipeline: start source: %w", err)
	}
	ll.Debug("pipeline started", "source", cfg.Source.Name(), "batch_size", cfg.BatchSize, "batch_delay", cfg.BatchDelay)

	delivered := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(delivered)
		return deliver(gctx, cfg, ch)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			ll.Debug("stop requested")
		case <-delivered:
			ll.Debug("source exhausted")
		}
		cfg.Output.Stop()
		return nil
	})
	runErr := g.Wait()

	if err := cfg.Output.AwaitStop(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("pipeline: await output stop: %w", err)
	}
	ll.Debug("pipeline stopped", "stats", cfg.Stats)
	if runErr != nil {
		return runErr
	}
	if fs, ok := cfg.Source.(interface{ Err() error }); ok && fs.Err() != nil {
		return fmt.Errorf("pipeline: source %s: %w", cfg.Source.Name(), fs.Err())
	}
	return nil
}

// deliver is the only caller of Output.Emit. A partial batch is flushed once
// no event has arrived for BatchDelay. Events still batched when ctx is
// cancelled are dropped.
func deliver(ctx context.Context, cfg *Config, ch <-chan *event.Event) error {
	batch := buffer.Get(cfg.BatchSize)
	defer func() { buffer.Put(batch) }()

	var (
		idle  *time.Timer
		idleC <-chan time.Time
	)
	if cfg.BatchDelay > 0 {
		idle = time.NewTimer(cfg.BatchDelay)
		idle.Stop()
		defer idle.Stop()
		idleC = idle.C
	}

	flush := func() error {
		if idle != nil {
			idle.Stop()
		}
		n := len(batch.Events)
		if n == 0 {
			return nil
		}
		if err := cfg.Output.Emit(batch.Events); err != nil {
			return fmt.Errorf("pipeline: emit: %w", err)
		}
		cfg.Stats.RecordBatch(n)
		clear(batch.Events)
		batch.Events = batch.Events[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-idleC:
			if err := flush(); err != nil {
				return err
			}
		case e, ok := <-ch:
			if !ok {
				return flush()
			}
			cfg.Stats.RecordIn()
			if accept(cfg, e) {
				batch.Events = append(batch.Events, e)
			} else {
				cfg.Stats.RecordFiltered()
			}
			switch {
			case len(batch.Events) >= cfg.BatchSize:
				if err := flush(); err != nil {
					return err
				}
			case idle != nil && len(batch.Events) > 0:
				idle.Reset(cfg.BatchDelay)
			}
		}
	}
}

func accept(cfg *Config, e *event.Event) bool {
	if cfg.Grok != nil {
		cfg.Grok.Parse(e)
	}
	if cfg.Filters != nil && cfg.Filters.Len() > 0 {
		return cfg.Filters.Match(e)
	}
	return true
}
