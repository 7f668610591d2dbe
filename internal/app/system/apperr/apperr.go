// Package apperr defines the domain error kinds surfaced by the invite tree
// core. Every error built here unwraps to exactly one kind, so callers test
// with errors.Is(err, apperr.ErrNotFound) and the HTTP layer maps kinds to
// status codes with HTTPStatus.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds.
var (
	ErrNotFound          = errors.New("not found")
	ErrBadRequest        = errors.New("bad request")
	ErrCorruptTree       = errors.New("corrupt tree")
	ErrInsufficientQuota = errors.New("insufficient invite quota")
)

// Error is a domain error with a human readable message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports an entity that does not exist or is invisible under the
// current filters (for example a soft-deleted user).
func NotFound(format string, args ...any) error { return newf(ErrNotFound, format, args...) }

// BadRequest reports a violated precondition.
func BadRequest(format string, args ...any) error { return newf(ErrBadRequest, format, args...) }

// CorruptTree reports a structural invariant violation such as a cycle.
func CorruptTree(format string, args ...any) error { return newf(ErrCorruptTree, format, args...) }

// InsufficientQuota reports an inviter with no invites left.
func InsufficientQuota(format string, args ...any) error {
	return newf(ErrInsufficientQuota, format, args...)
}

// HTTPStatus maps an error to the status code the HTTP layer should send.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientQuota):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
