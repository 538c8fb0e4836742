package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpan_ExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init("medic-test", "0.0.0", &buf))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	ctx, span := StartSpan(context.Background(), "command.execute", attribute.String("command", "df -h"))
	traceID := TraceID(ctx)
	End(span, nil)

	assert.Len(t, traceID, 32)
	assert.Contains(t, buf.String(), `"Name":"command.execute"`)
	assert.Contains(t, buf.String(), "df -h")
	assert.Contains(t, buf.String(), traceID)
}

func TestEnd_RecordsError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init("medic-test", "0.0.0", &buf))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	_, span := StartSpan(context.Background(), "agent.run")
	End(span, errors.New("quota exceeded"))

	assert.Contains(t, buf.String(), "quota exceeded")
	assert.Contains(t, buf.String(), `"Code":"Error"`)
}

func TestChildSpansShareTrace(t *testing.T) {
	require.NoError(t, Init("medic-test", "0.0.0", nil))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	ctx, parent := StartSpan(context.Background(), "agent.run")
	childCtx, child := StartSpan(ctx, "tool.execute")
	defer parent.End()
	defer child.End()

	assert.Equal(t, TraceID(ctx), TraceID(childCtx))
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
	assert.Empty(t, TraceID(nil))
}

func TestLogger(t *testing.T) {
	require.NoError(t, Init("medic-test", "0.0.0", nil))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx, span := StartSpan(context.Background(), "agent.run")
	defer span.End()

	logger := Logger(ctx, base)
	logger.Info().Msg("traced")
	assert.Contains(t, buf.String(), `"trace_id":"`+TraceID(ctx)+`"`)

	buf.Reset()
	plain := Logger(context.Background(), base)
	plain.Info().Msg("untraced")
	assert.NotContains(t, buf.String(), "trace_id")
}
