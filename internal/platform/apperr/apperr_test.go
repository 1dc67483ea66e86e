package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsByKind(t *testing.T) {
	err := ErrExpired.WithDetails("exp 2024-01-01")
	if !errors.Is(err, ErrExpired) {
		t.Fatal("errors.Is should match on kind")
	}
	if errors.Is(err, ErrMalformed) {
		t.Error("errors.Is should not match a different kind")
	}
}

func TestError_WrappedStillMatches(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("check: %w", ErrUpstreamUnavailable.WithCause(cause))
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("wrapped apperr should match sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if got := KindOf(err); got != KindUpstreamUnavailable {
		t.Errorf("KindOf = %q, want %q", got, KindUpstreamUnavailable)
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
}

func TestError_Message(t *testing.T) {
	err := ErrNotFound.WithDetails("session s1")
	if got, want := err.Error(), "not_found: not found: session s1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
