package source

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/logstash-plugins/go-output-example/internal/codec"
	"github.com/logstash-plugins/go-output-example/internal/event"
)

func collect(t *testing.T, ch <-chan *event.Event) []*event.Event {
	t.Helper()
	var out []*event.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("source did not close its channel")
		}
	}
}

func fixedClock(t *testing.T) {
	t.Helper()
	orig := now
	now = func() time.Time { return time.Date(2024, 12, 13, 19, 36, 0, 0, time.UTC) }
	t.Cleanup(func() { now = orig })
}

func TestReaderSource(t *testing.T) {
	fixedClock(t)
	src := NewReaderSource("test", strings.NewReader("one\ntwo\nthree\n"), nil)

	ch, err := src.Start(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)
	require.NoError(t, src.Err())

	require.Len(t, events, 3)
	for i, want := range []string{"one", "two", "three"} {
		require.Equal(t, want, events[i].GetString(event.FieldMessage))
		require.Equal(t, "2024-12-13T19:36:00.000Z", events[i].GetString(event.FieldTimestamp))

		seq, _ := events[i].GetMetadata(event.MetaSeq)
		require.Equal(t, uint64(i+1), seq)
		name, _ := events[i].GetMetadata(event.MetaSource)
		require.Equal(t, "test", name)
	}
}

func TestReaderSourceKeepsDecodedTimestamp(t *testing.T) {
	src := NewReaderSource("test", strings.NewReader(`{"@timestamp":"then","message":"m"}`), codec.JSON{})

	ch, err := src.Start(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)
	require.Len(t, events, 1)
	require.Equal(t, "then", events[0].GetString(event.FieldTimestamp))
}

func TestReaderSourceError(t *testing.T) {
	boom := errors.New("boom")
	src := NewReaderSource("test", iotest.ErrReader(boom), nil)

	ch, err := src.Start(context.Background())
	require.NoError(t, err)
	require.Empty(t, collect(t, ch))
	require.ErrorIs(t, src.Err(), boom)
}

func TestReaderSourceCancel(t *testing.T) {
	lines := strings.Repeat("x\n", chanSize*4)
	src := NewReaderSource("test", strings.NewReader(lines), nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Start(ctx)
	require.NoError(t, err)

	<-ch
	cancel()
	events := collect(t, ch)
	require.Less(t, len(events), chanSize*4)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("level=info msg=a\nlevel=warn msg=b\n"), 0o644))

	src := NewFileSource(path, false, codec.Logfmt{})
	require.Equal(t, "file:"+path, src.Name())

	ch, err := src.Start(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)
	require.Len(t, events, 2)
	require.Equal(t, "b", events[1].GetString(event.FieldMessage))
	require.Equal(t, "warn", events[1].GetString(event.FieldLevel))
}

func TestFileSourceFollow(t *testing.T) {
	orig := pollInterval
	pollInterval = 5 * time.Millisecond
	t.Cleanup(func() { pollInterval = orig })

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := NewFileSource(path, true, nil).Start(ctx)
	require.NoError(t, err)

	require.Equal(t, "first", (<-ch).GetString(event.FieldMessage))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case e := <-ch:
		require.Equal(t, "second", e.GetString(event.FieldMessage))
	case <-time.After(5 * time.Second):
		t.Fatal("appended line not read")
	}

	cancel()
	collect(t, ch)
}

func TestFileSourceLineTooLong(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	long := strings.Repeat("x", 2*maxLineLength)
	require.NoError(t, os.WriteFile(path, []byte("first\n"+long+"\nafter\n"), 0o644))

	src := NewFileSource(path, false, nil)
	require.NoError(t, src.Err())
	ch, err := src.Start(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 1)
	require.Equal(t, "first", events[0].GetString(event.FieldMessage))
	require.ErrorIs(t, src.Err(), bufio.ErrTooLong)
	require.ErrorContains(t, src.Err(), path)
}

func TestFileSourceUnterminatedLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("one\r\ntwo"), 0o644))

	src := NewFileSource(path, false, nil)
	ch, err := src.Start(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)
	require.NoError(t, src.Err())

	require.Len(t, events, 2)
	require.Equal(t, "one", events[0].GetString(event.FieldMessage))
	require.Equal(t, "two", events[1].GetString(event.FieldMessage))
}

func TestFileSourceFollowHoldsPartialLine(t *testing.T) {
	orig := pollInterval
	pollInterval = 5 * time.Millisecond
	t.Cleanup(func() { pollInterval = orig })

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("first\npar"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := NewFileSource(path, true, nil).Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "first", (<-ch).GetString(event.FieldMessage))

	// Let the reader hit EOF on the unterminated line a few times.
	time.Sleep(10 * pollInterval)
	select {
	case e := <-ch:
		t.Fatalf("partial line emitted early: %q", e.GetString(event.FieldMessage))
	default:
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("tial\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case e := <-ch:
		require.Equal(t, "partial", e.GetString(event.FieldMessage))
	case <-time.After(5 * time.Second):
		t.Fatal("completed line not read")
	}

	cancel()
	require.Empty(t, collect(t, ch))
}

func TestFileSourceMissing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope"), false, nil).Start(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestExecSource(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	src := NewExecSource("sh", []string{"-c", "echo out; echo err 1>&2"}, nil)
	require.Equal(t, "exec:sh", src.Name())

	ch, err := src.Start(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)
	require.Len(t, events, 2)

	streams := map[string]string{}
	for _, e := range events {
		stream, _ := e.GetMetadata(event.MetaStream)
		streams[stream.(string)] = e.GetString(event.FieldMessage)
	}
	require.Equal(t, map[string]string{"stdout": "out", "stderr": "err"}, streams)
}

func TestExecSourceExitStatus(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	src := NewExecSource("sh", []string{"-c", "echo partial; exit 3"}, nil)

	ch, err := src.Start(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)
	require.Len(t, events, 1)

	var exitErr *exec.ExitError
	require.ErrorAs(t, src.Err(), &exitErr)
	require.Equal(t, 3, exitErr.ExitCode())
}

func TestExecSourceCancelIsNotAnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	src := NewExecSource("sh", []string{"-c", "echo up; exec sleep 30"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "up", (<-ch).GetString(event.FieldMessage))

	cancel()
	collect(t, ch)
	require.NoError(t, src.Err())
}

func TestExecSourceMissingCommand(t *testing.T) {
	_, err := NewExecSource("definitely-not-a-command-xyz", nil, nil).Start(context.Background())
	require.Error(t, err)
}
