package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID     contextKey = "trace_id"
	keyUserID      contextKey = "user_id"
	keyRebalanceID contextKey = "rebalance_id"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithUserID adds user ID to context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// UserID extracts user ID from context.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)
	return v, ok && v != ""
}

// WithRebalanceID tags the context with the rebalance run it belongs to.
func WithRebalanceID(ctx context.Context, rebalanceID string) context.Context {
	return context.WithValue(ctx, keyRebalanceID, rebalanceID)
}

// RebalanceID extracts the rebalance run ID from context.
func RebalanceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRebalanceID).(string)
	return v, ok && v != ""
}
