// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Thyra.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Thyra errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeConfiguration indicates an orchestrator was invoked without the
	// configuration it needs (no tools registered, no initial state, no
	// blackboard). Configuration errors surface as Error results, never
	// as panics.
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// CodeToolFailure indicates a delegate tool execution failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeTimeout indicates an operation exceeded its iteration ceiling.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// ThyraError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type ThyraError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]any
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *ThyraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ThyraError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *ThyraError) MarshalJSON() ([]byte, error) {
	type Alias ThyraError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new ThyraError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *ThyraError {
	return &ThyraError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]any),
		Attributes: make(map[string]string),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *ThyraError) WithContext(key string, value any) *ThyraError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *ThyraError) WithAttribute(key, value string) *ThyraError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *ThyraError) WithRecoverable(recoverable bool) *ThyraError {
	e.Recoverable = recoverable
	return e
}

// AsThyraError attempts to convert an error to a ThyraError.
// Returns the error as ThyraError if it is one, or wraps it otherwise.
func AsThyraError(err error) *ThyraError {
	if err == nil {
		return nil
	}
	if te, ok := err.(*ThyraError); ok {
		return te
	}
	return New(CodeInternal, "wrapped error", err)
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *ThyraError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}
