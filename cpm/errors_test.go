package cpm

import (
	"errors"
	"testing"
)

func TestFatalErrorMessageWithWrappedCause(t *testing.T) {
	cause := errors.New("boom")
	err := fatalf("bad thing", cause)

	if got, want := err.Error(), "fatal: bad thing: boom"; got != want {
		t.Fatalf("got %q, wanted %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestFatalErrorMessageWithoutCause(t *testing.T) {
	err := fatalf("bad thing", nil)

	if got, want := err.Error(), "fatal: bad thing"; got != want {
		t.Fatalf("got %q, wanted %q", got, want)
	}
	if errors.Unwrap(err) != nil {
		t.Fatalf("expected no wrapped cause")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	for _, pair := range [][2]error{
		{ErrHalt, ErrBoot},
		{ErrHalt, ErrTimeout},
		{ErrBoot, ErrTimeout},
	} {
		if errors.Is(pair[0], pair[1]) {
			t.Fatalf("%v and %v should not be the same sentinel", pair[0], pair[1])
		}
	}
}
