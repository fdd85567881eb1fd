package errorx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapKeepsCodeAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrapf(cause, CodeDBError, "查询会话 %s", "C1")

	if GetCode(err) != CodeDBError {
		t.Fatalf("code = %d", GetCode(err))
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if err.Error() != "查询会话 C1: connection refused" {
		t.Fatalf("msg = %q", err.Error())
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("join: %w", Wrap(errors.New("x"), CodeForbidden, "not a participant"))
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(err, ErrReadOnlyConversation) {
		t.Fatal("different code must not match")
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("plain"), false},
		{New(CodeDBError, "db"), true},
		{New(CodeCacheError, "redis"), true},
		{New(CodeDBFault, "data too long"), false},
		{New(CodeForbidden, "nope"), false},
		{New(CodeValidationFailed, "too long"), false},
	}
	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Errorf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestGetCodeDefaultsToServerBusy(t *testing.T) {
	if GetCode(errors.New("boom")) != CodeServerBusy {
		t.Fatal("unknown errors should map to CodeServerBusy")
	}
}

func TestIsStoreFault(t *testing.T) {
	for _, code := range []int{CodeDBError, CodeDBFault, CodeCacheError} {
		if !IsStoreFault(Wrap(errors.New("x"), code, "store")) {
			t.Errorf("code %d should be a store fault", code)
		}
	}
	if IsStoreFault(ErrForbidden) || IsStoreFault(errors.New("plain")) || IsStoreFault(nil) {
		t.Error("business and plain errors are not store faults")
	}
}
