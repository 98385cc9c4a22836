// Package eventbus is an in-process fanout for cycle lifecycle signals.
// Publish never blocks: a subscriber whose buffer is full misses the event
// and the bus counts the drop.
package eventbus

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

type Event struct {
	Type string
	Time time.Time
	Data any
}

// Cycle lifecycle event types. Data carries the cycle report.
const (
	TypeCycleStarted  = "cycle.started"
	TypeCycleFinished = "cycle.finished"
	TypeCycleFailed   = "cycle.failed"
)

type Bus interface {
	Publish(e Event)
	// Subscribe receives events of the given types, or all events when none
	// are named. unsubscribe closes the channel and is idempotent.
	Subscribe(buffer int, types ...string) (ch <-chan Event, unsubscribe func())
	// Dropped counts events lost to full subscriber buffers.
	Dropped() uint64
}

func New() Bus { return &memBus{} }

type subscriber struct {
	types []string

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func (s *subscriber) wants(t string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// offer reports false when the event was dropped.
func (s *subscriber) offer(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// memBus keeps an immutable subscriber list; writers swap it under mu.
type memBus struct {
	mu      sync.Mutex
	subs    atomic.Pointer[[]*subscriber]
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	subs := b.subs.Load()
	if subs == nil {
		return
	}
	for _, s := range *subs {
		if s.wants(e.Type) && !s.offer(e) {
			b.dropped.Add(1)
		}
	}
}

func (b *memBus) Subscribe(buffer int, types ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{types: slices.Clone(types), ch: make(chan Event, buffer)}
	b.update(func(cur []*subscriber) []*subscriber { return append(cur, s) })

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.update(func(cur []*subscriber) []*subscriber {
				return slices.DeleteFunc(cur, func(x *subscriber) bool { return x == s })
			})
			s.close()
		})
	}
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }

func (b *memBus) update(fn func([]*subscriber) []*subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var cur []*subscriber
	if p := b.subs.Load(); p != nil {
		cur = slices.Clone(*p)
	}
	next := fn(cur)
	b.subs.Store(&next)
}
