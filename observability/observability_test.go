package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecorder_NilWhenDisabled(t *testing.T) {
	r, err := NewRecorder(nil)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = NewRecorder(&Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestRecorder_RecordMethodsAreNilSafe(t *testing.T) {
	ctx := context.Background()
	var r *Recorder

	r.RecordToolExecution(ctx, "search", 0.05, nil)
	r.RecordLLMCall(ctx, "openai", "gpt-4o", 0.5, 100, 50, nil)
	r.RecordContextCompaction(ctx, "researcher", 4096)
	r.RecordHookDispatch(ctx, "pre_tool", 0.001)
}

func TestNewRecorder_BuildsRealInstrumentsAndScrapes(t *testing.T) {
	r, err := NewRecorder(&Config{Enabled: true, Namespace: "testswarm"})
	require.NoError(t, err)
	require.NotNil(t, r)

	ctx := context.Background()
	r.RecordToolExecution(ctx, "search", 0.05, nil)
	r.RecordLLMCall(ctx, "openai", "gpt-4o", 0.5, 100, 50, errors.New("simulated failure"))

	mfs, err := r.registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestManager_HandlerServesMetricsWhenEnabled(t *testing.T) {
	m, err := NewManager(&Config{Enabled: true, Namespace: "testswarm"})
	require.NoError(t, err)
	require.True(t, m.Enabled())

	m.Recorder().RecordToolExecution(context.Background(), "search", 0.01, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", m.MetricsPath(), nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "testswarm_tool_calls_total")
}

func TestManager_DisabledHasNilHandlerAndRecorder(t *testing.T) {
	m, err := NewManager(&Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, m.Enabled())
	assert.Nil(t, m.Handler())
	assert.Nil(t, m.Recorder())
	assert.NoError(t, m.Shutdown())
}
