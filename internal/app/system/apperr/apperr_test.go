package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   error
		status int
	}{
		{"not found", NotFound("user %s not found", "abc"), ErrNotFound, http.StatusNotFound},
		{"bad request", BadRequest("cannot prune a core member"), ErrBadRequest, http.StatusBadRequest},
		{"corrupt tree", CorruptTree("cycle at %d hops", 4), ErrCorruptTree, http.StatusInternalServerError},
		{"quota", InsufficientQuota("no invites left"), ErrInsufficientQuota, http.StatusConflict},
		{"wrapped", fmt.Errorf("prune: %w", BadRequest("already deleted")), ErrBadRequest, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			if got := HTTPStatus(tt.err); got != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := NotFound("user %s not found", "42")
	if err.Error() != "user 42 not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
	empty := &Error{Kind: ErrBadRequest}
	if empty.Error() != "bad request" {
		t.Errorf("empty message should fall back to kind, got %q", empty.Error())
	}
}

func TestHTTPStatus_Infrastructure(t *testing.T) {
	if got := HTTPStatus(errors.New("connection refused")); got != http.StatusInternalServerError {
		t.Errorf("got %d, want 500", got)
	}
	if got := HTTPStatus(nil); got != http.StatusOK {
		t.Errorf("got %d, want 200", got)
	}
}
