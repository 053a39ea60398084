package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesFieldsAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf}).With(String("component", "anneal"))

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "step", Int("index", 3), Float("penalty", 1.5), Bool("accepted", true))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "step", rec["msg"])
	assert.Equal(t, "anneal", rec["component"])
	assert.Equal(t, float64(3), rec["index"])
	assert.Equal(t, 1.5, rec["penalty"])
	assert.Equal(t, true, rec["accepted"])
}

func TestParseLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warning", Output: &buf})
	log.Info(context.Background(), "dropped")
	assert.Zero(t, buf.Len())
	log.Warn(context.Background(), "kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRunLoggerReusesExistingID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	require.NotEmpty(t, id)

	again, same := EnsureRunID(ctx)
	assert.Equal(t, id, same)
	assert.Equal(t, id, RunIDFromContext(again))

	var buf bytes.Buffer
	_, log := WithRunLogger(ContextWithRunID(context.Background(), "run-1"), New(Config{Format: "json", Output: &buf}))
	log.Info(context.Background(), "hello")
	assert.Contains(t, buf.String(), `"run_id":"run-1"`)
}

func TestContextLogger(t *testing.T) {
	assert.Equal(t, Noop(), FromContext(context.Background()))

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), New(Config{Output: &buf}))
	FromContext(ctx).Info(ctx, "from context")
	assert.Contains(t, buf.String(), "from context")
}
