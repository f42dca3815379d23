package logstream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndEmit_FilterMatching(t *testing.T) {
	s := New(nil)

	var got []Event
	var mu sync.Mutex
	h := s.Subscribe(Filter{Agent: "worker"}, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})
	defer h.Unsubscribe()

	s.Emit(Event{Type: "tool_call", Agent: "lead"})
	s.Emit(Event{Type: "tool_call", Agent: "worker"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "worker", got[0].Agent)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	s := New(nil)
	h := s.Subscribe(Filter{}, func(Event) {})
	require.Equal(t, 1, s.Count())

	h.Unsubscribe()
	assert.Equal(t, 0, s.Count())

	h.Unsubscribe() // must not panic
	assert.Equal(t, 0, s.Count())
}

func TestEmit_FIFOAcrossSubscriptions(t *testing.T) {
	s := New(nil)
	var order []int
	var mu sync.Mutex

	for i := 0; i < 5; i++ {
		i := i
		s.Subscribe(Filter{}, func(Event) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
		})
	}

	s.Emit(Event{Type: "x"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestEmit_CallbackPanicDoesNotAffectSiblings(t *testing.T) {
	s := New(nil)
	var ran bool
	s.Subscribe(Filter{}, func(Event) { panic("boom") })
	s.Subscribe(Filter{}, func(Event) { ran = true })

	assert.NotPanics(t, func() { s.Emit(Event{Type: "x"}) })
	assert.True(t, ran)
}

func TestChild_InheritsSubscriptions(t *testing.T) {
	parent := New(nil)
	var seen bool
	parent.Subscribe(Filter{}, func(Event) { seen = true })

	child := parent.Child(true)
	child.Emit(Event{Type: "nested"})

	assert.True(t, seen)
}
