package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kestrelai/swarmkit/scratchpad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBashTool_BlocksDangerousCommands(t *testing.T) {
	bash := NewBashTool(t.TempDir(), 0)

	result, err := bash.Execute(context.Background(), map[string]any{"command": "rm -rf /"})
	require.NoError(t, err)
	assert.Contains(t, result.Error, "SECURITY BLOCK")
}

func TestBashTool_AllowsSafeCommands(t *testing.T) {
	bash := NewBashTool(t.TempDir(), 0)

	result, err := bash.Execute(context.Background(), map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "hello")
}

func TestEditTool_RequiresPriorRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	tracker := scratchpad.NewReadTracker()
	edit := &EditTool{agentName: "lead", tracker: tracker}

	result, err := edit.Execute(context.Background(), map[string]any{
		"path": path, "old_text": "hello", "new_text": "goodbye",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Error, "must Read")

	read := &ReadTool{agentName: "lead", tracker: tracker}
	_, err = read.Execute(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)

	result, err = edit.Execute(context.Background(), map[string]any{
		"path": path, "old_text": "hello", "new_text": "goodbye",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Error)

	raw, _ := os.ReadFile(path)
	assert.Equal(t, "goodbye world", string(raw))
}

func TestRegistry_InstantiateFailsFastOnMissingRequirement(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("bash", SourceBuiltin, BashFactory()))

	_, err := r.Instantiate("bash", Context{})
	assert.Error(t, err)

	_, err = r.Instantiate("bash", Context{Directory: t.TempDir()})
	assert.NoError(t, err)
}

func TestRegistry_RejectsNameCollision(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("bash", SourceBuiltin, BashFactory()))
	err := r.Register("bash", SourcePlugin, BashFactory())
	assert.Error(t, err)
}
