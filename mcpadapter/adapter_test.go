package mcpadapter

import (
	"context"
	"testing"

	"github.com/kestrelai/swarmkit/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	descriptors []ToolDescriptor
	calls       []string
	result      map[string]any
	err         error
	stopped     bool
}

func (f *fakeAdapter) ListTools(context.Context) ([]ToolDescriptor, error) {
	return f.descriptors, nil
}

func (f *fakeAdapter) CallTool(_ context.Context, name string, _ map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, name)
	return f.result, f.err
}

func (f *fakeAdapter) Stop() error {
	f.stopped = true
	return nil
}

func TestTools_WrapsEachDescriptorAsOneFactory(t *testing.T) {
	a := &fakeAdapter{
		descriptors: []ToolDescriptor{
			{Name: "search", Description: "search the web"},
			{Name: "fetch", Description: "fetch a URL"},
		},
	}

	factories, err := Tools(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, factories, 2)
	require.Contains(t, factories, "search")
	require.Contains(t, factories, "fetch")

	tool, err := factories["search"].Build(tools.Context{})
	require.NoError(t, err)
	assert.Equal(t, "search", tool.Name())
	assert.Equal(t, "search the web", tool.Description())
}

func TestMCPTool_ExecutePlumbsErrorField(t *testing.T) {
	a := &fakeAdapter{
		descriptors: []ToolDescriptor{{Name: "search"}},
		result:      map[string]any{"error": "boom"},
	}
	factories, err := Tools(context.Background(), a)
	require.NoError(t, err)

	tool, err := factories["search"].Build(tools.Context{})
	require.NoError(t, err)

	result, err := tool.Execute(context.Background(), map[string]any{"q": "x"})
	require.NoError(t, err)
	assert.Equal(t, "boom", result.Error)
	assert.Equal(t, []string{"search"}, a.calls)
}

func TestMCPTool_ExecuteReturnsContentOnSuccess(t *testing.T) {
	a := &fakeAdapter{
		descriptors: []ToolDescriptor{{Name: "search"}},
		result:      map[string]any{"result": "the answer"},
	}
	factories, err := Tools(context.Background(), a)
	require.NoError(t, err)

	tool, err := factories["search"].Build(tools.Context{})
	require.NoError(t, err)

	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "the answer", result.Content)
	assert.Empty(t, result.Error)
}

func TestFilterSet_NilPassesEverythingThrough(t *testing.T) {
	assert.Nil(t, filterSet(nil))
	set := filterSet([]string{"a", "b"})
	assert.True(t, set["a"])
	assert.False(t, set["c"])
}
