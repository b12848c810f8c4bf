package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSourceErrorIs(t *testing.T) {
	base := errors.New("connection refused")
	err := WrapUnavailable("add_on", "list_add_ons", "user-1", base)

	if !errors.Is(err, ErrUnavailable) {
		t.Fatal("expected ErrUnavailable")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to match")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("did not expect ErrNotFound")
	}

	var srcErr *SourceError
	if !errors.As(fmt.Errorf("outer: %w", err), &srcErr) || srcErr.Source != "add_on" {
		t.Fatalf("errors.As failed: %v", srcErr)
	}
	if got := err.Error(); got != "add_on list_add_ons failed for user user-1: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrapUnavailableNil(t *testing.T) {
	if WrapUnavailable("track", "op", "", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestIsCallerError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: ErrUnauthenticated, want: true},
		{err: fmt.Errorf("grant: %w", ErrReadOnly), want: true},
		{err: ErrUsageLimit, want: true},
		{err: WrapUnavailable("track", "op", "", errors.New("x")), want: false},
		{err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		if got := IsCallerError(tt.err); got != tt.want {
			t.Errorf("IsCallerError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
