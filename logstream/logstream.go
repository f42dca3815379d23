// Package logstream implements the process-wide LogStream & LogCollector
// fan-out described in spec.md §4.8: a single emission point, field-equality
// filters, idempotent subscription handles, and FIFO delivery both within a
// subscription and across subscription registration order.
//
// Grounded on the teacher's pkg/logger filtering-handler idea (subscribers
// here play the role its slog filtering handler played for third-party
// noise) and on team.SharedState's mutex-guarded map pattern for the
// subscriber table.
package logstream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one structured record emitted onto the stream.
type Event struct {
	Type      string
	Agent     string
	Swarm     string
	Tool      string
	Fields    map[string]any
	Timestamp time.Time
}

// Filter matches an Event by field equality. A nil or empty Filter matches
// everything. Only Type/Agent/Tool are checked when non-empty; Fields
// entries are checked by key/value equality.
type Filter struct {
	Type   string
	Agent  string
	Tool   string
	Fields map[string]any
}

func (f Filter) matches(e Event) bool {
	if f.Type != "" && f.Type != e.Type {
		return false
	}
	if f.Agent != "" && f.Agent != e.Agent {
		return false
	}
	if f.Tool != "" && f.Tool != e.Tool {
		return false
	}
	for k, v := range f.Fields {
		if e.Fields[k] != v {
			return false
		}
	}
	return true
}

// Callback receives delivered events. Panics inside a Callback are
// recovered and logged; they never affect sibling subscriptions.
type Callback func(Event)

// Handle identifies a live subscription. Unsubscribe is idempotent and
// thread-safe.
type Handle struct {
	id     string
	stream *LogStream
}

// Unsubscribe removes the subscription. Calling it more than once, or on an
// already-removed handle, is a no-op.
func (h Handle) Unsubscribe() {
	h.stream.mu.Lock()
	defer h.stream.mu.Unlock()
	delete(h.stream.subs, h.id)
}

type subscription struct {
	order    int
	filter   Filter
	callback Callback
	mu       sync.Mutex // serializes delivery to this subscription (FIFO)
}

// LogStream is the fan-out point. A zero-value LogStream is not usable; use
// New.
type LogStream struct {
	mu       sync.Mutex
	subs     map[string]*subscription
	nextSeq  int
	parent   *LogStream // for task-scoped inheritance
	logger   *slog.Logger
}

// New constructs an empty LogStream.
func New(logger *slog.Logger) *LogStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogStream{subs: make(map[string]*subscription), logger: logger}
}

// Child returns a new LogStream scoped to a nested task. When
// inheritSubscriptions is true, every event emitted on the child is also
// delivered to the parent's subscribers (spec.md §4.8's "nested Swarms
// inherit parent subscriptions").
func (s *LogStream) Child(inheritSubscriptions bool) *LogStream {
	c := New(s.logger)
	if inheritSubscriptions {
		c.parent = s
	}
	return c
}

// Subscribe registers callback for events matching filter, returning a
// Handle whose Unsubscribe is idempotent. Registration order determines
// cross-subscription delivery order for a single emission.
func (s *LogStream) Subscribe(filter Filter, callback Callback) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.nextSeq++
	s.subs[id] = &subscription{order: s.nextSeq, filter: filter, callback: callback}
	return Handle{id: id, stream: s}
}

// Emit delivers e to every matching subscriber, in subscription-registration
// order, then propagates to the parent stream (if inherited). Delivery
// happens synchronously on the calling goroutine, so Emit returns only after
// every matching callback has returned; callback panics are recovered so one
// bad subscriber cannot wedge emission.
func (s *LogStream) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	matched := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.filter.matches(e) {
			matched = append(matched, sub)
		}
	}
	s.mu.Unlock()

	sortByOrder(matched)
	for _, sub := range matched {
		s.deliver(sub, e)
	}

	if s.parent != nil {
		s.parent.Emit(e)
	}
}

func (s *LogStream) deliver(sub *subscription, e Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("logstream: subscriber callback panicked", "recover", r)
		}
	}()
	sub.callback(e)
}

func sortByOrder(subs []*subscription) {
	for i := 1; i < len(subs); i++ {
		j := i
		for j > 0 && subs[j-1].order > subs[j].order {
			subs[j-1], subs[j] = subs[j], subs[j-1]
			j--
		}
	}
}

// Count returns the number of live subscriptions (test/diagnostic use).
func (s *LogStream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
