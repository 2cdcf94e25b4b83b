package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithRequestID(ctx, "req-1")
	if got, ok := RequestID(ctx); !ok || got != "req-1" {
		t.Fatalf("RequestID mismatch: %v %v", got, ok)
	}

	ctx = WithSessionID(ctx, "sess")
	if got, ok := SessionID(ctx); !ok || got != "sess" {
		t.Fatalf("SessionID mismatch: %v %v", got, ok)
	}

	ctx = WithMessageID(ctx, "msg")
	if got, ok := MessageID(ctx); !ok || got != "msg" {
		t.Fatalf("MessageID mismatch: %v %v", got, ok)
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	t.Parallel()

	ctx := WithSessionID(context.Background(), "")
	if _, ok := SessionID(ctx); ok {
		t.Fatalf("empty session id should not be reported")
	}
	if _, ok := TraceID(context.Background()); ok {
		t.Fatalf("missing trace id should not be reported")
	}
}
