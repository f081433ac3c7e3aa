// Package monitor provides run statistics for the pipeline.
package monitor

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Stats collects pipeline processing metrics in a lock-free manner.
type Stats struct {
	in        atomic.Uint64
	filtered  atomic.Uint64
	emitted   atomic.Uint64
	batches   atomic.Uint64
	startTime time.Time
}

// NewStats creates a new statistics collector.
func NewStats() *Stats {
	return &Stats{
		startTime: time.Now(),
	}
}

// RecordIn counts an event read from the source.
func (s *Stats) RecordIn() {
	s.in.Add(1)
}

// RecordFiltered counts an event dropped by the filter chain.
func (s *Stats) RecordFiltered() {
	s.filtered.Add(1)
}

// RecordBatch counts a batch of n events the output accepted.
func (s *Stats) RecordBatch(n int) {
	s.batches.Add(1)
	s.emitted.Add(uint64(n))
}

// In returns the number of events read.
func (s *Stats) In() uint64 { return s.in.Load() }

// Filtered returns the number of events dropped by filters.
func (s *Stats) Filtered() uint64 { return s.filtered.Load() }

// Emitted returns the number of events in batches the output accepted.
func (s *Stats) Emitted() uint64 { return s.emitted.Load() }

// Batches returns the number of Emit calls that succeeded.
func (s *Stats) Batches() uint64 { return s.batches.Load() }

// Elapsed returns the time since monitoring started.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// Rate returns the events read per second.
func (s *Stats) Rate() float64 {
	elapsed := s.Elapsed().Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(s.In()) / elapsed
}

// LogValue implements slog.LogValuer.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("in", s.In()),
		slog.Uint64("filtered", s.Filtered()),
		slog.Uint64("emitted", s.Emitted()),
		slog.Uint64("batches", s.Batches()),
		slog.Duration("elapsed", s.Elapsed().Round(time.Millisecond)),
	)
}

// Summary returns a formatted summary string.
func (s *Stats) Summary() string {
	in := s.In()
	emitted := s.Emitted()

	emitRate := float64(0)
	if in > 0 {
		emitRate = float64(emitted) / float64(in) * 100
	}

	return fmt.Sprintf(
		"── Summary ──\n"+
			"  Events in:     %d\n"+
			"  Filtered:      %d\n"+
			"  Emitted:       %d (%.1f%%)\n"+
			"  Batches:       %d\n"+
			"  Duration:      %s\n"+
			"  Throughput:    %.0f events/s\n"+
			"─────────────",
		in, s.Filtered(), emitted, emitRate, s.Batches(),
		s.Elapsed().Round(time.Millisecond),
		s.Rate(),
	)
}
