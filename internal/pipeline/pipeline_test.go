package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/logstash-plugins/go-output-example/internal/codec"
	"github.com/logstash-plugins/go-output-example/internal/config"
	"github.com/logstash-plugins/go-output-example/internal/event"
	"github.com/logstash-plugins/go-output-example/internal/filter"
	"github.com/logstash-plugins/go-output-example/internal/monitor"
	"github.com/logstash-plugins/go-output-example/internal/output/example"
	"github.com/logstash-plugins/go-output-example/internal/parser"
	"github.com/logstash-plugins/go-output-example/internal/plugin"
	"github.com/logstash-plugins/go-output-example/internal/source"
)

func exampleOutput(t *testing.T, prefix string, w *bytes.Buffer) *example.Output {
	t.Helper()
	o, err := example.NewWithWriter(config.New(map[string]any{"prefix": prefix}), plugin.Context{}, w)
	require.NoError(t, err)
	return o
}

// decodeLines strips prefix from every output line and decodes the JSON.
func decodeLines(t *testing.T, prefix, out string) []map[string]any {
	t.Helper()
	var got []map[string]any
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, prefix), line)
		var fields map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, prefix)), &fields))
		got = append(got, fields)
	}
	return got
}

func TestRun(t *testing.T) {
	var buf bytes.Buffer
	out := exampleOutput(t, "X>", &buf)
	stats := monitor.NewStats()

	err := Run(context.Background(), &Config{
		Source:    source.NewReaderSource("test", strings.NewReader("message 0\nmessage 1\nmessage 2\n"), codec.Plain{}),
		Output:    out,
		Stats:     stats,
		BatchSize: 2,
	})
	require.NoError(t, err)
	require.True(t, out.Stopped())

	got := decodeLines(t, "X>", buf.String())
	require.Len(t, got, 3)
	for i, fields := range got {
		require.Equal(t, "message "+string(rune('0'+i)), fields["message"])
		require.Contains(t, fields, "@timestamp")
	}
	require.Equal(t, uint64(3), stats.In())
	require.Equal(t, uint64(3), stats.Emitted())
	require.Equal(t, uint64(2), stats.Batches())
}

func TestRunFiltersAndGrok(t *testing.T) {
	var buf bytes.Buffer
	grok, err := parser.NewGrokParser(`%{LOGLEVEL:level} %{GREEDYDATA:text}`)
	require.NoError(t, err)
	stats := monitor.NewStats()

	in := "INFO started\nERROR disk full\nnot structured\n"
	err = Run(context.Background(), &Config{
		Source:    source.NewReaderSource("test", strings.NewReader(in), nil),
		Grok:      grok,
		Filters:   filter.NewChain(filter.Any, filter.NewLevelFilter(filter.LevelError)),
		Output:    exampleOutput(t, "", &buf),
		Stats:     stats,
		BatchSize: 125,
	})
	require.NoError(t, err)

	got := decodeLines(t, "", buf.String())
	require.Len(t, got, 1)
	require.Equal(t, "ERROR", got[0]["level"])
	require.Equal(t, "disk full", got[0]["text"])
	require.Equal(t, uint64(2), stats.Filtered())
}

func TestRunThroughRegistry(t *testing.T) {
	out, err := plugin.DefaultRegistry.New(example.Name, config.New(map[string]any{"prefix": "p:"}), plugin.Context{Pipeline: "main"})
	require.NoError(t, err)

	err = Run(context.Background(), &Config{
		Source:    source.NewReaderSource("test", strings.NewReader(""), nil),
		Output:    out,
		BatchSize: 1,
	})
	require.NoError(t, err)
	require.NoError(t, out.AwaitStop(context.Background()))
}

// recordingOutput records batches and fails Emit with err when set.
type recordingOutput struct {
	mu      sync.Mutex
	batches [][]string
	emitted chan struct{}
	err     error

	once sync.Once
	done chan struct{}
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{emitted: make(chan struct{}, 16), done: make(chan struct{})}
}

func (o *recordingOutput) Emit(events []*event.Event) error {
	if o.err != nil {
		return o.err
	}
	var batch []string
	for _, e := range events {
		batch = append(batch, e.GetString(event.FieldMessage))
	}
	o.mu.Lock()
	o.batches = append(o.batches, batch)
	o.mu.Unlock()
	o.emitted <- struct{}{}
	return nil
}

func (o *recordingOutput) Stop() { o.once.Do(func() { close(o.done) }) }

func (o *recordingOutput) AwaitStop(ctx context.Context) error {
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *recordingOutput) ConfigSchema() []config.Setting { return nil }

func (o *recordingOutput) Batches() [][]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batches
}

// openSource sends its events then stays open until ctx is cancelled.
type openSource struct {
	events []string
}

func (s openSource) Name() string { return "open" }

func (s openSource) Start(ctx context.Context) (<-chan *event.Event, error) {
	ch := make(chan *event.Event)
	go func() {
		defer close(ch)
		for _, m := range s.events {
			e := event.New()
			e.SetField(event.FieldMessage, m)
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return ch, nil
}

func TestRunBatchDelayFlushesPartialBatch(t *testing.T) {
	out := newRecordingOutput()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- Run(ctx, &Config{
			Source:     openSource{events: []string{"a", "b"}},
			Output:     out,
			BatchSize:  100,
			BatchDelay: 5 * time.Millisecond,
		})
	}()

	flushed := func() []string {
		var all []string
		for _, b := range out.Batches() {
			all = append(all, b...)
		}
		return all
	}
	require.Eventually(t, func() bool { return len(flushed()) == 2 }, 5*time.Second, 5*time.Millisecond,
		"partial batch was not flushed")

	cancel()
	require.NoError(t, <-errc)
	require.Equal(t, []string{"a", "b"}, flushed())
}

func TestRunCancelStopsOutput(t *testing.T) {
	var buf bytes.Buffer
	out := exampleOutput(t, "", &buf)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		errc <- Run(ctx, &Config{
			Source:    openSource{},
			Output:    out,
			BatchSize: 10,
		})
	}()

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.True(t, out.Stopped())
	require.Zero(t, buf.Len())
}

func TestRunEmitError(t *testing.T) {
	boom := errors.New("boom")
	out := newRecordingOutput()
	out.err = boom

	stats := monitor.NewStats()

	err := Run(context.Background(), &Config{
		Source:    openSource{events: []string{"a"}},
		Output:    out,
		Stats:     stats,
		BatchSize: 1,
	})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "pipeline: emit")
	require.NoError(t, out.AwaitStop(context.Background()))
	require.Equal(t, uint64(1), stats.In())
	require.Zero(t, stats.Emitted())
	require.Zero(t, stats.Batches())
}

func TestRunSourceReadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	long := strings.Repeat("x", 2<<20)
	require.NoError(t, os.WriteFile(path, []byte("first\n"+long+"\nafter\n"), 0o644))

	var buf bytes.Buffer
	err := Run(context.Background(), &Config{
		Source:    source.NewFileSource(path, false, nil),
		Output:    exampleOutput(t, "", &buf),
		BatchSize: 10,
	})
	require.ErrorIs(t, err, bufio.ErrTooLong)
	require.ErrorContains(t, err, "pipeline: source file:")

	got := decodeLines(t, "", buf.String())
	require.Len(t, got, 1, "lines read before the error are still delivered")
	require.Equal(t, "first", got[0]["message"])
}

// feedSource forwards events pushed by the test until ctx is cancelled.
type feedSource chan string

func (s feedSource) Name() string { return "feed" }

func (s feedSource) Start(ctx context.Context) (<-chan *event.Event, error) {
	ch := make(chan *event.Event)
	go func() {
		defer close(ch)
		for {
			select {
			case m := <-s:
				e := event.New()
				e.SetField(event.FieldMessage, m)
				select {
				case ch <- e:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func TestRunBatchDelayWaitsForIdle(t *testing.T) {
	const delay = 300 * time.Millisecond
	out := newRecordingOutput()
	feed := make(feedSource)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- Run(ctx, &Config{
			Source:     feed,
			Output:     out,
			BatchSize:  100,
			BatchDelay: delay,
		})
	}()

	// Each event arrives well within the delay, so the batch stays open.
	for _, m := range []string{"a", "b", "c"} {
		feed <- m
		time.Sleep(delay / 10)
	}
	require.Empty(t, out.Batches())

	require.Eventually(t, func() bool { return len(out.Batches()) == 1 }, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, [][]string{{"a", "b", "c"}}, out.Batches())

	cancel()
	require.NoError(t, <-errc)
}

func TestRunValidation(t *testing.T) {
	src := source.NewReaderSource("test", strings.NewReader(""), nil)
	out := newRecordingOutput()

	tests := map[string]*Config{
		"no source":  {Output: out, BatchSize: 1},
		"no output":  {Source: src, BatchSize: 1},
		"batch size": {Source: src, Output: out},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			require.Error(t, Run(context.Background(), cfg))
		})
	}
}
