package apierr

import "fmt"

// Error is a typed failure carried from services up to the HTTP layer.
// Status is the HTTP status the handler should respond with, Code a
// stable machine-readable identifier for the caller.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// WithErr returns a copy of e wrapping err, keeping status and code.
// Used to attach request-specific detail to the package-level sentinels.
func (e *Error) WithErr(err error) *Error {
	if e == nil {
		return New(0, "", err)
	}
	return &Error{Status: e.Status, Code: e.Code, Err: err}
}

// Is lets errors.Is match any two apierr values by code, so the
// package-level sentinels work as comparison targets even after WithErr.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e != nil && e.Code == t.Code
}
