package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeValidation   = "VALIDATION_FAILED"
	ErrCodeRemote       = "BACKEND_ERROR"
	ErrCodeStream       = "PROGRESS_STREAM_FAILED"
	ErrCodeServer       = "ANALYSIS_ERROR"
	ErrCodePrecondition = "PRECONDITION_FAILED"
	ErrCodeSinglePage   = "SINGLE_PAGE_FAILED"
	ErrCodeStageBusy    = "STAGE_BUSY"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError reports a required field missing before submission.
// It is raised locally and never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// RemoteError is a non-2xx HTTP response from the analyzer backend.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// StreamError is a transport-level failure on the progress stream,
// as opposed to an explicit error frame from the server.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("progress stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// ServerError carries an error message the backend reported explicitly,
// either as an error-typed stream frame or an "error" field in a JSON body.
// The message is surfaced to the user verbatim.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return e.Message }

// PreconditionError reports a downstream stage invoked without its
// required upstream data. Raised before any network I/O.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Message)
}

// SinglePageError is a failure analyzing one manually-added URL.
// It is scoped to that action and leaves pipeline state untouched.
type SinglePageError struct {
	URL string
	Err error
}

func (e *SinglePageError) Error() string {
	return fmt.Sprintf("single page analysis failed for %s: %v", e.URL, e.Err)
}

func (e *SinglePageError) Unwrap() error { return e.Err }

// ErrStageBusy rejects a run while another job is in flight on the
// same stage controller.
var ErrStageBusy = errors.New("stage already has a job in flight")

// ToDetail maps an internal error to an API-facing ErrorDetail.
func ToDetail(err error) *ErrorDetail {
	var (
		vErr  *ValidationError
		rErr  *RemoteError
		stErr *StreamError
		svErr *ServerError
		pErr  *PreconditionError
		spErr *SinglePageError
	)
	switch {
	case errors.As(err, &vErr):
		return &ErrorDetail{Code: ErrCodeValidation, Message: vErr.Message}
	case errors.As(err, &spErr):
		return &ErrorDetail{Code: ErrCodeSinglePage, Message: spErr.Error()}
	case errors.As(err, &pErr):
		return &ErrorDetail{Code: ErrCodePrecondition, Message: pErr.Message}
	case errors.As(err, &svErr):
		return &ErrorDetail{Code: ErrCodeServer, Message: svErr.Message}
	case errors.As(err, &stErr):
		return &ErrorDetail{Code: ErrCodeStream, Message: stErr.Error()}
	case errors.As(err, &rErr):
		return &ErrorDetail{Code: ErrCodeRemote, Message: rErr.Error()}
	case errors.Is(err, ErrStageBusy):
		return &ErrorDetail{Code: ErrCodeStageBusy, Message: ErrStageBusy.Error()}
	default:
		return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
	}
}
