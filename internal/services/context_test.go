package services_test

import (
	"context"
	"testing"

	"diarist/internal/services"
)

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCycleID(ctx, "c-1")
	ctx = services.WithStage(ctx, "transcribe")
	ctx = services.WithActor(ctx, "alice")
	ctx = services.WithRequestID(ctx, "req-9")

	if id, ok := services.CycleIDFromContext(ctx); !ok || id != "c-1" {
		t.Fatalf("unexpected cycle id %q %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "transcribe" {
		t.Fatalf("unexpected stage %q %v", stage, ok)
	}
	if actor, ok := services.ActorFromContext(ctx); !ok || actor != "alice" {
		t.Fatalf("unexpected actor %q %v", actor, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-9" {
		t.Fatalf("unexpected request id %q %v", rid, ok)
	}
}

func TestContextHelpersIgnoreEmptyValues(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected empty stage to be ignored")
	}
	if _, ok := services.CycleIDFromContext(context.Background()); ok {
		t.Fatal("expected no cycle id")
	}
}
