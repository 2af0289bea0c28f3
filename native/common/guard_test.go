package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "leverage"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	pauses := NewPauses(" Leverage ")
	if err := Guard(pauses, "leverage"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if err := Guard(pauses, "hub"); err != nil {
		t.Fatalf("unexpected error for hub: %v", err)
	}
	pauses.Set("leverage", false)
	if err := Guard(pauses, "leverage"); err != nil {
		t.Fatalf("expected resumed module, got %v", err)
	}
	if got := pauses.List(); len(got) != 0 {
		t.Fatalf("expected no paused modules, got %v", got)
	}
}
