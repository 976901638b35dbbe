package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, ok := TraceID(ctx); ok {
		t.Fatalf("expected no trace id on empty context")
	}

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithUserID(ctx, "user")
	if got, ok := UserID(ctx); !ok || got != "user" {
		t.Fatalf("UserID mismatch: %v %v", got, ok)
	}

	ctx = WithRebalanceID(ctx, "rb-1")
	if got, ok := RebalanceID(ctx); !ok || got != "rb-1" {
		t.Fatalf("RebalanceID mismatch: %v %v", got, ok)
	}

	if _, ok := UserID(WithUserID(context.Background(), "")); ok {
		t.Fatalf("expected empty user id to be reported as absent")
	}
}
