package errl

import (
	"errors"
	"strings"
	"testing"
)

var errBase = errors.New("base failure")

func TestErrorf(t *testing.T) {
	err := Errorf("loading %s: %w", "wallet", errBase)

	if !errors.Is(err, errBase) {
		t.Fatalf("Errorf() lost the wrapped error: %v", err)
	}
	if !strings.Contains(err.Error(), "errl.TestErrorf") {
		t.Errorf("Errorf() = %q, want caller location", err.Error())
	}
	if !strings.HasSuffix(err.Error(), "loading wallet: base failure") {
		t.Errorf("Errorf() = %q, want formatted message", err.Error())
	}
}

func TestError(t *testing.T) {
	if Error(nil) != nil {
		t.Fatal("Error(nil) should be nil")
	}

	err := Error(errBase)
	if !errors.Is(err, errBase) {
		t.Fatalf("Error() lost the wrapped error: %v", err)
	}
	if !strings.Contains(err.Error(), "errl.TestError") {
		t.Errorf("Error() = %q, want caller location", err.Error())
	}
}
