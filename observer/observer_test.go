package observer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kestrelai/swarmkit/chat"
	"github.com/kestrelai/swarmkit/llms"
	"github.com/kestrelai/swarmkit/logstream"
	"github.com/kestrelai/swarmkit/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct{ calls int32 }

func (p *countingProvider) Complete(ctx context.Context, req llms.CompleteRequest) (*llms.CompleteResponse, error) {
	atomic.AddInt32(&p.calls, 1)
	return &llms.CompleteResponse{Role: llms.RoleAssistant, Content: "observed"}, nil
}
func (p *countingProvider) Stateful() bool { return false }
func (p *countingProvider) Model() string  { return "stub" }

func TestObserver_SelfConsumptionGuardDropsOwnEvents(t *testing.T) {
	stream := logstream.New(nil)
	provider := &countingProvider{}

	o := Register(stream, Config{
		Name:   "watcher",
		Filter: logstream.Filter{Type: "tool_call"},
		Prompt: func(e logstream.Event) (string, bool) { return "go", true },
		ChatFactory: func() (*chat.Chat, error) {
			return chat.New(chat.Config{AgentName: "watcher", Provider: provider, Tools: tools.NewRegistry()}), nil
		},
		WaitForCompletion: true,
	})
	defer o.Close()

	stream.Emit(logstream.Event{Type: "tool_call", Agent: "watcher"})
	o.Wait()
	assert.EqualValues(t, 0, atomic.LoadInt32(&provider.calls))

	stream.Emit(logstream.Event{Type: "tool_call", Agent: "someone_else"})
	o.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&provider.calls))
}

func TestObserver_ConcurrencyCapped(t *testing.T) {
	stream := logstream.New(nil)
	var inFlight, maxInFlight int32
	var mu sync.Mutex

	o := Register(stream, Config{
		Name:           "capped",
		Filter:         logstream.Filter{Type: "evt"},
		Prompt:         func(e logstream.Event) (string, bool) { return "go", true },
		MaxConcurrency: 2,
		ChatFactory: func() (*chat.Chat, error) {
			return chat.New(chat.Config{
				AgentName: "capped",
				Provider: &blockingProvider{
					onStart: func() {
						cur := atomic.AddInt32(&inFlight, 1)
						mu.Lock()
						if cur > maxInFlight {
							maxInFlight = cur
						}
						mu.Unlock()
					},
					onEnd: func() { atomic.AddInt32(&inFlight, -1) },
				},
				Tools: tools.NewRegistry(),
			}), nil
		},
	})
	defer o.Close()

	for i := 0; i < 6; i++ {
		stream.Emit(logstream.Event{Type: "evt", Agent: "someone_else"})
	}
	o.Wait()
	assert.LessOrEqual(t, maxInFlight, int32(2))
}

type blockingProvider struct {
	onStart func()
	onEnd   func()
}

func (p *blockingProvider) Complete(ctx context.Context, req llms.CompleteRequest) (*llms.CompleteResponse, error) {
	p.onStart()
	defer p.onEnd()
	time.Sleep(10 * time.Millisecond)
	return &llms.CompleteResponse{Role: llms.RoleAssistant, Content: "done"}, nil
}
func (p *blockingProvider) Stateful() bool { return false }
func (p *blockingProvider) Model() string  { return "stub" }

func TestObserver_EmitsErrorEventOnFailure(t *testing.T) {
	stream := logstream.New(nil)

	var gotErrorEvent bool
	stream.Subscribe(logstream.Filter{Type: "observer_agent_error"}, func(e logstream.Event) {
		gotErrorEvent = true
	})

	o := Register(stream, Config{
		Name:   "failer",
		Filter: logstream.Filter{Type: "evt"},
		Prompt: func(e logstream.Event) (string, bool) { return "go", true },
		ChatFactory: func() (*chat.Chat, error) {
			return nil, assertErr{}
		},
		WaitForCompletion: true,
	})
	defer o.Close()

	stream.Emit(logstream.Event{Type: "evt", Agent: "someone_else"})
	o.Wait()

	require.True(t, gotErrorEvent)
	assert.Equal(t, 1, o.ErrorCount())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
