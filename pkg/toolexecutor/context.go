package toolexecutor

import (
	"context"

	"github.com/harun/medic/internal/observability"
)

type execContextKey struct{}

// ContextWithExecContext carries execCtx to the handler. The run ID is also
// attached for audit events recorded below the tool.
func ContextWithExecContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	if execCtx == nil {
		return ctx
	}
	if execCtx.RunID != "" && observability.RunID(ctx) == "" {
		ctx = observability.WithRunID(ctx, execCtx.RunID)
	}
	return context.WithValue(ctx, execContextKey{}, execCtx)
}

// ExecContextFromContext returns the execution context a handler runs under, or nil.
func ExecContextFromContext(ctx context.Context) *ExecutionContext {
	execCtx, _ := ctx.Value(execContextKey{}).(*ExecutionContext)
	return execCtx
}
