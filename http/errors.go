package http

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is wrapped by configuration errors: a malformed URL,
	// a URL whose scheme is not http or https, or an unsupported method.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIllegalState is wrapped when an operation is invoked out of order,
	// such as building a request before its URL is set.
	ErrIllegalState = errors.New("illegal state")

	// ErrAsyncTimeout is wrapped by the error of a Future that did not
	// complete within the client's async timeout.
	ErrAsyncTimeout = errors.New("async execution timed out")

	// ErrClientClosed is returned for work submitted to, or abandoned by,
	// a client that has been shut down.
	ErrClientClosed = errors.New("client is shut down")

	// ErrShutdownTimeout is returned by Shutdown when in-flight executions
	// had to be terminated forcibly.
	ErrShutdownTimeout = errors.New("shutdown deadline exceeded")
)

const (
	// StatusTransportFailure is the status code reported for failures that
	// happen before a real HTTP status is available.
	StatusTransportFailure = 500

	msgStatusFailure = "HTTP request failed with status code: %d"
	msgIOFailure     = "I/O error occurred while processing the request"
)

// HTTPError is the typed failure of an execution. StatusCode carries the
// server's status for HTTP-level failures, or StatusTransportFailure when the
// request failed at the transport level, in which case Cause holds the
// underlying error.
type HTTPError struct {
	StatusCode int
	Message    string
	Cause      error
}

// NewHTTPError creates an HTTPError without a cause.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message}
}

// WrapHTTPError creates an HTTPError that wraps cause.
func WrapHTTPError(statusCode int, message string, cause error) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message, Cause: cause}
}

func statusError(statusCode int) *HTTPError {
	return NewHTTPError(statusCode, fmt.Sprintf(msgStatusFailure, statusCode))
}

func ioError(cause error) *HTTPError {
	return WrapHTTPError(StatusTransportFailure, msgIOFailure, cause)
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// String renders the error in a fixed debug format:
//
//	HttpException{statusCode=400, message=Bad Request, cause=null}
func (e *HTTPError) String() string {
	cause := "null"
	if e.Cause != nil {
		cause = e.Cause.Error()
	}
	return fmt.Sprintf("HttpException{statusCode=%d, message=%s, cause=%s}", e.StatusCode, e.Message, cause)
}

// StatusCode reports the status code carried by the first HTTPError in err's
// chain.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}

// AsyncError is the envelope a Future fails with when the execution itself
// failed. It unwraps to the execution's error, so errors.As still finds the
// HTTPError.
type AsyncError struct {
	Err error
}

func (e *AsyncError) Error() string {
	return "async execution completed with failure: " + e.Err.Error()
}

func (e *AsyncError) Unwrap() error {
	return e.Err
}
