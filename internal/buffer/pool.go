// Package buffer provides memory-managed buffering for the pipeline.
package buffer

import (
	"sync"

	"github.com/logstash-plugins/go-output-example/internal/event"
)

// Batch is a reusable slice of events handed to an output.
type Batch struct {
	Events []*event.Event
}

// Pool manages reusable batches to reduce GC pressure between Emit calls.
var Pool = &sync.Pool{
	New: func() interface{} {
		return &Batch{}
	},
}

// Get retrieves an empty batch with room for at least size events.
func Get(size int) *Batch {
	b := Pool.Get().(*Batch)
	if cap(b.Events) < size {
		b.Events = make([]*event.Event, 0, size)
	}
	b.Events = b.Events[:0]
	return b
}

// Put clears the batch and returns it to the pool.
// The caller must not retain b.Events.
func Put(b *Batch) {
	clear(b.Events)
	b.Events = b.Events[:0]
	Pool.Put(b)
}
