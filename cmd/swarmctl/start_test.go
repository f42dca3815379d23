package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	replies []string
	i       int
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.i >= len(f.replies) {
		return "done", nil
	}
	r := f.replies[f.i]
	f.i++
	return r, nil
}

func TestStartCmd_RunOncePropagatesExecuteResult(t *testing.T) {
	c := &StartCmd{}
	exec := &fakeExecutor{replies: []string{"hello there"}}
	err := c.runOnce(context.Background(), exec, "hi")
	require.NoError(t, err)
}

func TestStartCmd_RunOncePropagatesExecuteError(t *testing.T) {
	c := &StartCmd{}
	exec := &fakeExecutor{err: errors.New("boom")}
	err := c.runOnce(context.Background(), exec, "hi")
	assert.Error(t, err)
}

func TestStartCmd_RunInteractiveStopsOnExitKeyword(t *testing.T) {
	c := &StartCmd{}
	exec := &fakeExecutor{replies: []string{"reply one"}}
	err := c.runInteractive(context.Background(), exec, "exit")
	require.NoError(t, err)
}

func TestStartCmd_RunInteractiveStopsWhenContextCancelled(t *testing.T) {
	c := &StartCmd{}
	exec := &fakeExecutor{replies: []string{"reply"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.runInteractive(ctx, exec, "first prompt")
	require.NoError(t, err)
}

func TestAppendLogFile_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	f, err := appendLogFile(dir + "/nested/events.jsonl")
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, strings.HasSuffix(f.Name(), "events.jsonl"))
}
