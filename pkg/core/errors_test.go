package core

import (
	"errors"
	"testing"
)

func TestErrorIsSentinel(t *testing.T) {
	err := UnknownCorticalArea("area-1")

	if !errors.Is(err, ErrUnknownCorticalArea) {
		t.Error("expected errors.Is to match ErrUnknownCorticalArea")
	}
	if errors.Is(err, ErrCapacityExceeded) {
		t.Error("did not expect errors.Is to match an unrelated sentinel")
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := CorticalIndexInUse(1)
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected a non-empty error message")
	}
	if !errors.Is(err, ErrCorticalIndexInUse) {
		t.Error("expected errors.Is to match ErrCorticalIndexInUse")
	}
}

func TestErrorAs(t *testing.T) {
	err := InvalidSynapse(1, 2)

	var target *Error
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to extract *Error")
	}
	if target.Sentinel != ErrInvalidSynapse {
		t.Errorf("expected ErrInvalidSynapse, got %v", target.Sentinel)
	}
}
