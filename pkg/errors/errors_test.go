package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := Wrap(stdErrors.New("boom"), "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}
	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}
	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestFromError(t *testing.T) {
	if out := FromError(ErrNotFound); out != ErrNotFound {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	out := FromError(stdErrors.New("raw"))
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}

	wrapped := fmt.Errorf("service: %w", ErrForbidden)
	if got := FromError(wrapped); got.StatusCode != http.StatusForbidden {
		t.Fatalf("expected wrapped forbidden to surface 403, got %d", got.StatusCode)
	}
}

func TestCopiesMatchSentinels(t *testing.T) {
	gone := ErrGone.WithMessage("invitation link has expired")
	if !stdErrors.Is(gone, ErrGone) {
		t.Fatal("expected copy to match ErrGone")
	}
	if stdErrors.Is(gone, ErrNotFound) {
		t.Fatal("did not expect copy to match ErrNotFound")
	}
	if !stdErrors.Is(NewNotFound("event"), ErrNotFound) {
		t.Fatal("expected NewNotFound to match ErrNotFound")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
	if ErrBadRequest.Message != "Invalid request" {
		t.Fatal("expected sentinel message to stay untouched")
	}
}
