package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCodesAreSequentialAndUnique(t *testing.T) {
	seen := make(map[Code]string)
	for i, e := range All() {
		if want := CodeIncorrectConfigAccount + Code(i); e.Code != want {
			t.Fatalf("%s: code %d, want %d", e.Name, e.Code, want)
		}
		if prev, ok := seen[e.Code]; ok {
			t.Fatalf("code %d shared by %s and %s", e.Code, prev, e.Name)
		}
		seen[e.Code] = e.Name
	}
}

func TestWrapKeepsIdentity(t *testing.T) {
	err := fmt.Errorf("transition: %w", Wrap(ErrInsufficientFunds, "vault %s", "abc"))
	if !stderrors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("wrapped error lost its identity: %v", err)
	}
	coded, ok := As(err)
	if !ok || coded.Code != CodeInsufficientFunds {
		t.Fatalf("As returned %v, %v", coded, ok)
	}
	if _, ok := As(stderrors.New("plain")); ok {
		t.Fatalf("plain errors must not be coded")
	}
}
