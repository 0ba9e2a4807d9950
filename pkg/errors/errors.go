package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeAuth          ErrorType = "auth"
	ErrorTypeParsing       ErrorType = "parsing"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeServerError   ErrorType = "server_error"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeRunFailed     ErrorType = "run_failed"
	ErrorTypeTimedOut      ErrorType = "timed_out"
	ErrorTypeIO            ErrorType = "io"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Stage names the step of a scrape operation an error belongs to
type Stage string

const (
	StageConfiguration Stage = "configuration"
	StageSubmit        Stage = "submit"
	StageStatusCheck   Stage = "status_check"
	StageDatasetFetch  Stage = "dataset_fetch"
	StagePersist       Stage = "persist"
)

// Error represents an API or orchestration error with type information
type Error struct {
	Type    ErrorType
	Stage   Stage
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Code: code, Message: message}
}

// WithStage tags err with a stage. Typed errors keep their type and code;
// anything else is wrapped as an unknown error.
func WithStage(stage Stage, err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		tagged := *apiErr
		tagged.Stage = stage
		return &tagged
	}
	return &Error{
		Type:    ErrorTypeUnknown,
		Stage:   stage,
		Message: "operation failed",
		Err:     err,
	}
}

// ConfigurationError reports a missing or invalid setting detected before any network call
func ConfigurationError(message string) *Error {
	return &Error{Type: ErrorTypeConfiguration, Stage: StageConfiguration, Message: message}
}

// SubmissionError reports a failure to start a run
func SubmissionError(err error) *Error {
	return WithStage(StageSubmit, err)
}

// StatusCheckError reports a failure while polling a run
func StatusCheckError(err error) *Error {
	return WithStage(StageStatusCheck, err)
}

// DatasetFetchError reports a failure while reading a run's dataset
func DatasetFetchError(err error) *Error {
	return WithStage(StageDatasetFetch, err)
}

// PersistError reports a failure while writing the output artifact
func PersistError(err error) *Error {
	return &Error{Type: ErrorTypeIO, Stage: StagePersist, Message: "failed to write output", Err: err}
}

// RunFailedError reports a run that reached FAILED, ABORTED or TIMED-OUT
func RunFailedError(runID, status string) *Error {
	return &Error{
		Type:    ErrorTypeRunFailed,
		Stage:   StageStatusCheck,
		Message: fmt.Sprintf("run %s finished with status %s", runID, status),
	}
}

// TimedOutError reports a run that did not reach a terminal status in time
func TimedOutError(runID string, attempts int) *Error {
	return &Error{
		Type:    ErrorTypeTimedOut,
		Stage:   StageStatusCheck,
		Message: fmt.Sprintf("run %s still not finished after %d status checks", runID, attempts),
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// StageOf returns the Stage of err, or an empty stage
func StageOf(err error) Stage {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Stage
	}
	return ""
}

// IsType reports whether err carries the given type
func IsType(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}
