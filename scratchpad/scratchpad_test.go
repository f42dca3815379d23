package scratchpad

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScratchpad_LastWriteWins(t *testing.T) {
	s := New(ModeEnabled)
	s.Set("plan", "v1", "lead")
	s.Set("plan", "v2", "worker")

	entry, ok := s.Get("plan")
	assert.True(t, ok)
	assert.Equal(t, "v2", entry.Value)
	assert.Equal(t, "worker", entry.Agent)
}

func TestScratchpad_DisabledModeDropsWrites(t *testing.T) {
	s := New(ModeDisabled)
	s.Set("key", "value", "lead")

	_, ok := s.Get("key")
	assert.False(t, ok)
}

func TestReadTracker_EnforcesDigestMatch(t *testing.T) {
	rt := NewReadTracker()
	rt.RecordRead("lead", "/tmp/a.go", "digest-1")

	assert.True(t, rt.HasRead("lead", "/tmp/a.go", "digest-1"))
	assert.False(t, rt.HasRead("lead", "/tmp/a.go", "digest-2"))
	assert.False(t, rt.HasRead("other-agent", "/tmp/a.go", "digest-1"))
}

func TestReadTracker_SnapshotRestoreRoundTrip(t *testing.T) {
	rt := NewReadTracker()
	rt.RecordRead("lead", "/tmp/a.go", "digest-1")

	snap := rt.Snapshot()

	fresh := NewReadTracker()
	fresh.Restore(snap)
	assert.True(t, fresh.HasRead("lead", "/tmp/a.go", "digest-1"))
}
