package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLoggerAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	cl := NewContextLogger("selfrag-orchestrator", base)

	ctx := WithJobID(context.Background(), "job-42")
	ctx = WithSource(ctx, "policies.txt")
	ctx = WithPipelineStage(ctx, "index_document")

	cl.WithContext(ctx).Info("Processing job")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "selfrag-orchestrator", record["service"])
	assert.Equal(t, "job-42", record[string(JobIDKey)])
	assert.Equal(t, "policies.txt", record[string(SourceKey)])
	assert.Equal(t, "index_document", record[string(PipelineKey)])
}

func TestContextLoggerSkipsAbsentFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	cl := NewContextLogger("selfrag-orchestrator", base)

	cl.WithContext(context.Background()).Info("idle")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, string(JobIDKey))
	assert.NotContains(t, record, string(SourceKey))
	assert.NotContains(t, record, string(PipelineKey))
}
