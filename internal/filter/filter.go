// Package filter selects the events that reach the output.
//
// Text filters read the string values of one event field, the message
// unless told otherwise. The level filter reads the level field and falls
// back to scanning the message.
package filter

import (
	"slices"
	"strings"

	"github.com/logstash-plugins/go-output-example/internal/event"
)

// Filter decides whether an event passes.
type Filter interface {
	Match(e *event.Event) bool
	Name() string
}

// Mode is how a Chain combines its members.
type Mode int

const (
	// Any passes an event accepted by at least one member.
	Any Mode = iota
	// All passes an event accepted by every member.
	All
)

func (m Mode) String() string {
	if m == All {
		return "all"
	}
	return "any"
}

// Chain is a Filter built from other filters. An empty chain passes
// every event.
type Chain struct {
	mode    Mode
	members []Filter
}

// NewChain returns a chain over members.
func NewChain(mode Mode, members ...Filter) *Chain {
	return &Chain{mode: mode, members: members}
}

// Add appends f.
func (c *Chain) Add(f Filter) {
	c.members = append(c.members, f)
}

// Len returns the number of members.
func (c *Chain) Len() int {
	return len(c.members)
}

func (c *Chain) Match(e *event.Event) bool {
	if len(c.members) == 0 {
		return true
	}
	if c.mode == All {
		return !slices.ContainsFunc(c.members, func(f Filter) bool { return !f.Match(e) })
	}
	return slices.ContainsFunc(c.members, func(f Filter) bool { return f.Match(e) })
}

// Name renders the chain as mode(member member ...).
func (c *Chain) Name() string {
	names := make([]string, len(c.members))
	for i, f := range c.members {
		names[i] = f.Name()
	}
	return c.mode.String() + "(" + strings.Join(names, " ") + ")"
}
