// Package apierror defines the typed error returned by every stage of the
// image handler. Each error carries an HTTP status, a stable machine-readable
// code and a human-readable message, and serialises to the JSON body the
// handler returns to the caller.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a request failure surfaced to the caller.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// MarshalJSON renders the body sent back to clients. The wrapped cause is
// never serialised.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status  int    `json:"status"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}{e.Status, e.Code, e.Message})
}

// New creates an Error.
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap converts a collaborator failure into an Error. If err already is (or
// wraps) an *Error it is returned unchanged so upstream status and code
// survive; otherwise status and code are used with err's text as message.
func Wrap(err error, status int, code string) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if code == "" {
		code = CodeInternalError
	}
	return &Error{Status: status, Code: code, Message: err.Error(), Err: err}
}

// As reports whether err is an *Error and returns it.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Code == code
}
