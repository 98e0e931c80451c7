package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindConflict, "booking %s already accepted", "LOC-1")
	if KindOf(err) != KindConflict {
		t.Errorf("KindOf = %v, want conflict", KindOf(err))
	}
	if err.Error() != "booking LOC-1 already accepted" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	if KindOf(errors.New("plain")) != 0 {
		t.Error("plain error must not report a kind")
	}
	if KindOf(nil) != 0 {
		t.Error("nil must not report a kind")
	}
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindProvider, cause, "wave initiate")

	if !errors.Is(err, cause) {
		t.Error("wrapped cause must remain reachable via errors.Is")
	}
	if KindOf(err) != KindProvider {
		t.Errorf("KindOf = %v, want provider", KindOf(err))
	}

	// kind survives further fmt wrapping
	outer := fmt.Errorf("initiate payment: %w", err)
	if KindOf(outer) != KindProvider {
		t.Error("kind must survive fmt.Errorf wrapping")
	}
}

func TestIsKind(t *testing.T) {
	err := New(KindNotFound, "tractor missing")
	if !IsKind(err, KindNotFound) {
		t.Error("expected not_found kind")
	}
	if IsKind(err, KindForbidden) {
		t.Error("did not expect forbidden kind")
	}
}
