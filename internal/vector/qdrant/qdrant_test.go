package qdrant

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gapscan/gapscan/internal/vector"
)

func TestMapNotFound_TranslatesGRPCStatus(t *testing.T) {
	err := status.Error(codes.NotFound, `Collection "policies" doesn't exist`)
	mapped := mapNotFound(err, "policies")
	if !errors.Is(mapped, vector.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", mapped)
	}
}

func TestMapNotFound_PassesOtherErrorsThrough(t *testing.T) {
	err := status.Error(codes.Unavailable, "connection refused")
	mapped := mapNotFound(err, "policies")
	if errors.Is(mapped, vector.ErrCollectionNotFound) {
		t.Fatal("unavailable must not map to ErrCollectionNotFound")
	}
	if mapped != err {
		t.Errorf("expected error unchanged, got %v", mapped)
	}
}
