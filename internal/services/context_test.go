package services_test

import (
	"context"
	"testing"

	"submux/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithUserID(ctx, "42")
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithMode(ctx, "hardmux")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.UserIDFromContext(ctx); !ok || id != "42" {
		t.Fatalf("unexpected user id: %v %v", id, ok)
	}
	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-1" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if mode, ok := services.ModeFromContext(ctx); !ok || mode != "hardmux" {
		t.Fatalf("unexpected mode: %v %v", mode, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithMode(ctx, "")
	ctx = services.WithUserID(ctx, "")
	if _, ok := services.ModeFromContext(ctx); ok {
		t.Fatal("expected no mode value")
	}
	if _, ok := services.UserIDFromContext(ctx); ok {
		t.Fatal("expected no user value")
	}
}
