package common

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// DetailedError can describe itself at length for the logs.
type DetailedError interface {
	Detail() string
}

// Error is a workflow error that remembers where it was raised and
// whether a retry could succeed.
type Error struct {
	Err     error
	File    string
	IsFatal bool
	Line    int
	Message string
}

// NewError returns an Error tagged with the caller's file and line.
func NewError(message string, err error, isFatal bool) *Error {
	_, file, line, _ := runtime.Caller(1)
	return &Error{
		Err:     err,
		File:    file,
		IsFatal: isFatal,
		Line:    line,
		Message: message,
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return e.Message
}

// Detail includes the source location and the cause.
func (e *Error) Detail() string {
	kind := "retryable"
	if e.IsFatal {
		kind = "FATAL"
	}
	detail := fmt.Sprintf("%s: %s [%s:%d]", kind, e.Message, e.File, e.Line)
	if e.Err != nil {
		detail += " caused by: " + e.Err.Error()
	}
	return detail
}

// HttpError describes a failed call to the verification service, nsqd
// or the ledger RPC endpoint. StatusCode is zero when no response came
// back.
type HttpError struct {
	Err        error
	Message    string
	Method     string
	StatusCode int
	URL        string
}

func NewHttpError(message string, err error, method, url string, statusCode int) *HttpError {
	return &HttpError{
		Err:        err,
		Message:    message,
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
	}
}

func (e *HttpError) Unwrap() error {
	return e.Err
}

func (e *HttpError) Error() string {
	return e.Message
}

func (e *HttpError) Detail() string {
	detail := fmt.Sprintf("%s %s -> %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	if e.Err != nil {
		detail += " caused by: " + e.Err.Error()
	}
	return detail
}

// Temporary returns true if the request may succeed when retried:
// the server was unreachable, overloaded, or rate limiting us.
func (e *HttpError) Temporary() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// IsPermanent returns true if err, or anything it wraps, says that
// retrying won't help: a fatal *Error or an HttpError with a 4xx
// status other than 429.
func IsPermanent(err error) bool {
	var workflowErr *Error
	if errors.As(err, &workflowErr) && workflowErr.IsFatal {
		return true
	}
	var httpErr *HttpError
	return errors.As(err, &httpErr) && !httpErr.Temporary()
}

// Detail returns the longest description available for err.
func Detail(err error) string {
	var detailed DetailedError
	if errors.As(err, &detailed) {
		return detailed.Detail()
	}
	return err.Error()
}
