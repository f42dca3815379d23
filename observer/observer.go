// Package observer implements the Observer Manager (spec.md §4.7):
// secondary agents that subscribe to LogStream event types, fire-and-forget
// by default, with a self-consumption guard, a per-observer concurrency
// cap, and an optional blocking wait_for_completion mode.
//
// No direct teacher analog exists (hector has no observer concept); built
// in the idiom of logstream's Subscribe/panic-isolated callback pattern
// and chat's semaphore-bounded fan-out from chat/concurrency.go.
package observer

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrelai/swarmkit/chat"
	"github.com/kestrelai/swarmkit/logstream"
	"golang.org/x/sync/semaphore"
)

// PromptFn builds the prompt to send the observer's chat instance given the
// triggering event, or returns ok=false to skip spawning for this event.
type PromptFn func(e logstream.Event) (prompt string, ok bool)

// Config describes one Observer registration.
type Config struct {
	Name               string
	Filter             logstream.Filter
	Prompt             PromptFn
	ChatFactory        func() (*chat.Chat, error) // isolated instance, no delegation tools
	MaxConcurrency     int
	WaitForCompletion  bool
}

// Observer subscribes Config to a LogStream and spawns its chat instance
// (bounded by MaxConcurrency) whenever a matching, non-self event arrives.
type Observer struct {
	cfg    Config
	stream *logstream.LogStream
	sem    *semaphore.Weighted
	handle logstream.Handle

	wg sync.WaitGroup

	mu       sync.Mutex
	lastErr  error
	errCount int
}

// Register subscribes cfg onto stream and returns the live Observer. Call
// Close to unsubscribe.
func Register(stream *logstream.LogStream, cfg Config) *Observer {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	o := &Observer{
		cfg:    cfg,
		stream: stream,
		sem:    semaphore.NewWeighted(int64(maxConcurrency)),
	}
	o.handle = stream.Subscribe(cfg.Filter, o.onEvent)
	return o
}

func (o *Observer) onEvent(e logstream.Event) {
	// Self-consumption guard: an event's agent field equal to this
	// observer's own name is dropped, per spec.md §4.7.
	if e.Agent == o.cfg.Name {
		return
	}

	prompt, ok := o.cfg.Prompt(e)
	if !ok {
		return
	}

	ctx := context.Background()
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return
	}

	run := func() {
		defer o.sem.Release(1)
		o.runOnce(ctx, prompt)
	}

	if o.cfg.WaitForCompletion {
		o.wg.Add(1)
		defer o.wg.Done()
		run()
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		run()
	}()
}

func (o *Observer) runOnce(ctx context.Context, prompt string) {
	c, err := o.cfg.ChatFactory()
	if err != nil {
		o.recordErr(err)
		o.emitError(err)
		return
	}
	if _, err := c.Ask(ctx, prompt); err != nil {
		o.recordErr(err)
		o.emitError(err)
	}
}

func (o *Observer) emitError(err error) {
	if o.stream == nil {
		return
	}
	o.stream.Emit(logstream.Event{
		Type:  "observer_agent_error",
		Agent: o.cfg.Name,
		Fields: map[string]any{
			"error": err.Error(),
		},
	})
}

func (o *Observer) recordErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastErr = err
	o.errCount++
}

// LastError returns the most recently recorded observer failure, if any.
func (o *Observer) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// ErrorCount returns how many observer invocations have failed so far.
func (o *Observer) ErrorCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errCount
}

// Wait blocks until every in-flight observer invocation completes (used by
// Swarm.Execute when WaitForCompletion observers are registered, and by
// Close to drain fire-and-forget ones before tearing down).
func (o *Observer) Wait() { o.wg.Wait() }

// Close unsubscribes the observer and waits for in-flight invocations to
// finish. Satisfies swarm.Cleaner so Swarm.Close can tear it down.
func (o *Observer) Close() error {
	o.handle.Unsubscribe()
	o.wg.Wait()
	return nil
}

// Manager owns a set of registered Observers for one Swarm, so Swarm.Close
// can tear all of them down with a single Cleaner.
type Manager struct {
	mu        sync.Mutex
	observers []*Observer
}

// NewManager constructs an empty Manager.
func NewManager() *Manager { return &Manager{} }

// Add registers cfg on stream and tracks the resulting Observer.
func (m *Manager) Add(stream *logstream.LogStream, cfg Config) *Observer {
	o := Register(stream, cfg)
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
	return o
}

// WaitAll blocks until every observer with WaitForCompletion set has
// finished its in-flight invocations.
func (m *Manager) WaitAll() {
	m.mu.Lock()
	observers := append([]*Observer(nil), m.observers...)
	m.mu.Unlock()
	for _, o := range observers {
		if o.cfg.WaitForCompletion {
			o.Wait()
		}
	}
}

// Close tears down every registered observer, idempotently, and aggregates
// the first error encountered.
func (m *Manager) Close() error {
	m.mu.Lock()
	observers := append([]*Observer(nil), m.observers...)
	m.observers = nil
	m.mu.Unlock()

	var firstErr error
	for _, o := range observers {
		if err := o.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("observer %s: %w", o.cfg.Name, err)
		}
	}
	return firstErr
}
