package gateway

import (
	"errors"
	"fmt"
)

// MsgSummarizationFailed is the only failure text callers ever see for internal errors.
const MsgSummarizationFailed = "Failed to generate summary due to a server error."

// ErrSummarizationFailed matches every internal gateway failure via errors.Is.
var ErrSummarizationFailed = errors.New(MsgSummarizationFailed)

// Step names used in errors, logs and metrics.
const (
	StepRetrieve = "retrieve"
	StepGenerate = "generate"
	StepValidate = "validate"
	// StepWait is a caller that gave up before the shared run finished.
	StepWait = "wait"
)

// FailureError is returned by Summarize when a step fails. Its message is always
// MsgSummarizationFailed; the cause is reachable through errors.Is/As for logging.
type FailureError struct {
	Step  string
	Cause error
}

func (e *FailureError) Error() string {
	return MsgSummarizationFailed
}

func (e *FailureError) Unwrap() []error {
	return []error{ErrSummarizationFailed, e.Cause}
}

// Detail describes the underlying failure. It is meant for server logs only.
func (e *FailureError) Detail() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Cause)
}

// APICallError represents an error from the LLM provider
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("API call failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("API call failed: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// ParseError represents an error parsing the model response
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
