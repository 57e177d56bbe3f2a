// Package publish delivers escalation events to the three downstream queues.
// Sinks are deliberately thin: the pipeline's responsibility ends at decision
// plus publish, and human review is a queue hand-off, never a blocking call.
package publish

import (
	"context"
	"sync"

	"github.com/shukpa/astrophysics-data-engineering/internal/escalate"
)

// Memory buffers published events per queue. Suitable for dev/testing.
type Memory struct {
	mu     sync.RWMutex
	events map[escalate.Queue][]*escalate.Event
}

// NewMemory initializes an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{events: make(map[escalate.Queue][]*escalate.Event)}
}

// Publish appends the event to its queue.
func (m *Memory) Publish(_ context.Context, queue escalate.Queue, ev *escalate.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[queue] = append(m.events[queue], ev)
	return nil
}

// Events returns the events published to a queue, in order.
func (m *Memory) Events(queue escalate.Queue) []*escalate.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*escalate.Event, len(m.events[queue]))
	copy(out, m.events[queue])
	return out
}
