package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// State store errors
	ErrCodeLockTimeout  ErrorCode = "STATE_LOCK_TIMEOUT"
	ErrCodeStateCorrupt ErrorCode = "STATE_CORRUPT"
	ErrCodeStateIO      ErrorCode = "STATE_IO"

	// Task document errors
	ErrCodeTaskNotFound           ErrorCode = "TASK_NOT_FOUND"
	ErrCodeTaskHeaderMissing      ErrorCode = "TASK_HEADER_MISSING"
	ErrCodeTaskHeaderUnterminated ErrorCode = "TASK_HEADER_UNTERMINATED"

	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Command execution errors
	ErrCodeCommandTimeout ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeCommandFailed  ErrorCode = "COMMAND_FAILED"

	// Git errors
	ErrCodeGitQueryFailed ErrorCode = "GIT_QUERY_FAILED"

	// Transcript errors
	ErrCodeTranscriptIO ErrorCode = "TRANSCRIPT_IO"

	// Policy errors
	ErrCodeUserOnly ErrorCode = "USER_ONLY_ACTION"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// WardenError represents a structured error with context
type WardenError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *WardenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *WardenError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *WardenError) WithDetail(key string, value interface{}) *WardenError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *WardenError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new WardenError
func New(code ErrorCode, message string) *WardenError {
	return &WardenError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a WardenError
func Wrap(err error, code ErrorCode, message string) *WardenError {
	return &WardenError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error, or anything it wraps, carries the given code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	wardenErr, ok := err.(*WardenError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return wardenErr.Code
}
