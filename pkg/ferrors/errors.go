// Package ferrors defines the engine's error taxonomy (spec §7), grounded
// on the teacher's types.WorkflowError: every error carries a stable code
// plus a details map, and constructors favor duck-typed classification
// (Retry Engine inspects Code without a type switch) over Go type
// assertions alone.
package ferrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-checkable error classification. The Retry
// Engine's classify step (spec §4.8) compares a failure's Code against a
// policy's retryableErrors list, regardless of the failure's concrete Go
// type — any error carrying a matching Code is retryable.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeExpression    Code = "EXPRESSION_ERROR"
	CodeRequest       Code = "REQUEST_ERROR"
	CodeTransform     Code = "TRANSFORM_ERROR"
	CodeCondition     Code = "CONDITION_ERROR"
	CodeLoop          Code = "LOOP_ERROR"
	CodeTimeout       Code = "TIMEOUT_ERROR"
	CodeExecution     Code = "EXECUTION_ERROR"
	CodeMaxRetries    Code = "MAX_RETRIES_EXCEEDED"
	CodeUnknownRef    Code = "UNKNOWN_REFERENCE"
	CodePathSyntax    Code = "PATH_SYNTAX_ERROR"
	CodePropertyAccess Code = "PROPERTY_ACCESS_ERROR"
	CodeTokenizer     Code = "TOKENIZER_ERROR"
	// CodeAborted marks a flow run ended by a cancellation signal that
	// is not itself a timeout (spec §5: "external" and "stop" reasons
	// "surface as plain abort").
	CodeAborted Code = "ABORTED"
)

// Error is the common shape for every engine error: a code, a human
// message, an optional details map, an optional step name / expression
// for user-visible context (spec §7: "Every error reported to the caller
// includes the step name (when applicable), the expression (when
// applicable)..."), and an optional wrapped cause.
type Error struct {
	Code       Code
	Message    string
	Details    map[string]interface{}
	StepName   string
	Expression string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.StepName != "" {
		msg += fmt.Sprintf(" (step=%s)", e.StepName)
	}
	if e.Expression != "" {
		msg += fmt.Sprintf(" (expr=%s)", e.Expression)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// HasCode reports whether err, or anything in its Unwrap chain, carries
// the given code. Any error exposing an `ErrorCode() Code` method
// qualifies (duck-typed, not limited to *Error), matching spec §4.8's
// "regardless of whether it is one of the engine's own error kinds or a
// duck-typed object carrying code". Walking the chain matters because a
// step executor wraps a dispatch/cause error in its own kind-specific
// Error (e.g. RequestError) before the Retry Engine ever sees it; the
// retryable code usually lives on that inner cause, not the wrapper.
func HasCode(err error, code Code) bool {
	type coded interface{ ErrorCode() Code }
	for err != nil {
		if c, ok := err.(coded); ok && c.ErrorCode() == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// ErrorCode implements the duck-typed `coded` interface above.
func (e *Error) ErrorCode() Code { return e.Code }

func newErr(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func NewValidationError(msg string) *Error { return newErr(CodeValidation, msg) }
func NewDependencyError(msg string) *Error { return newErr(CodeDependency, msg) }

// NewExpressionError wraps a parse/eval failure, preserving the original
// expression string and the inner message (spec §4.3, §7).
func NewExpressionError(expression string, cause error) *Error {
	return &Error{Code: CodeExpression, Message: "expression evaluation failed", Expression: expression, Cause: cause}
}

func NewRequestError(stepName string, cause error) *Error {
	return &Error{Code: CodeRequest, Message: "request step failed", StepName: stepName, Cause: cause}
}

func NewTransformError(stepName, msg string) *Error {
	return &Error{Code: CodeTransform, Message: msg, StepName: stepName}
}

func NewConditionError(stepName, msg string) *Error {
	return &Error{Code: CodeCondition, Message: msg, StepName: stepName}
}

func NewLoopError(stepName, msg string) *Error {
	return &Error{Code: CodeLoop, Message: msg, StepName: stepName}
}

// NewTimeoutError builds a TimeoutError carrying the resolved timeout and
// the elapsed execution time (spec §7: "carries {timeout, executionTime,
// stepName?, expression?}").
func NewTimeoutError(timeoutMS, executionTimeMS int64, stepName, expression string) *Error {
	return &Error{
		Code:       CodeTimeout,
		Message:    fmt.Sprintf("deadline of %dms exceeded after %dms", timeoutMS, executionTimeMS),
		StepName:   stepName,
		Expression: expression,
		Details: map[string]interface{}{
			"timeout":       timeoutMS,
			"executionTime": executionTimeMS,
		},
	}
}

// NewAbortedError builds the plain-abort error a flow run ends with
// when cancelled for a reason other than a timeout (spec §5: external
// cancellation or a stop step).
func NewAbortedError(reason string) *Error {
	return &Error{Code: CodeAborted, Message: fmt.Sprintf("flow aborted (%s)", reason), Details: map[string]interface{}{"reason": reason}}
}

// NewExecutionError wraps retry exhaustion or an internal invariant
// breach (spec §4.8: "ExecutionError{code: MAX_RETRIES_EXCEEDED, cause}").
func NewExecutionError(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

func NewUnknownReferenceError(name string) *Error {
	return &Error{Code: CodeUnknownRef, Message: fmt.Sprintf("unknown reference %q", name)}
}

func NewPathSyntaxError(msg string, pos int) *Error {
	return &Error{Code: CodePathSyntax, Message: msg, Details: map[string]interface{}{"position": pos}}
}

func NewPropertyAccessError(msg string) *Error {
	return &Error{Code: CodePropertyAccess, Message: msg}
}

func NewTokenizerError(msg string, pos int) *Error {
	return &Error{Code: CodeTokenizer, Message: msg, Details: map[string]interface{}{"position": pos}}
}

// WithStep annotates an error with the owning step name, if it is one of
// ours; otherwise returns err unchanged.
func WithStep(err error, stepName string) error {
	if e, ok := err.(*Error); ok && e.StepName == "" {
		e.StepName = stepName
	}
	return err
}
