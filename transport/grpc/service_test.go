package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestSessionIDFromContextDefaultsWithoutMetadata(t *testing.T) {
	got := sessionIDFromContext(context.Background())
	if got != "" {
		t.Fatalf("expected empty session id without metadata, got %q", got)
	}
}

func TestSessionIDFromContextUsesIncomingMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(sessionMetadataKey, "sess-123"))
	got := sessionIDFromContext(ctx)
	if got != "sess-123" {
		t.Fatalf("expected session id sess-123, got %q", got)
	}
}

func TestSessionIDFromContextTakesFirstValue(t *testing.T) {
	md := metadata.Pairs(sessionMetadataKey, "first", sessionMetadataKey, "second")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	got := sessionIDFromContext(ctx)
	if got != "first" {
		t.Fatalf("expected first metadata value, got %q", got)
	}
}
