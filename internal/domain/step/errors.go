package step

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// Error codes for step execution.
const (
	ErrCodeMissingPrecondition = "MISSING_PRECONDITION"
	ErrCodeCommandFailed       = "COMMAND_FAILED"
	ErrCodeReadinessTimeout    = "READINESS_TIMEOUT"
	ErrCodeCheckFailed         = "CHECK_FAILED"
	ErrCodeApplyFailed         = "APPLY_FAILED"
)

// StepError represents a user-friendly step error with actionable suggestions.
type StepError struct {
	Code       string // Error code for categorization
	Message    string // User-friendly error message
	StepID     string // Step ID if applicable
	Suggestion string // Actionable suggestion to fix the error
	Underlying error  // Wrapped error for error chain
}

// Error returns the formatted error message.
func (e *StepError) Error() string {
	msg := e.Message
	if e.StepID != "" {
		msg = fmt.Sprintf("step %q: %s", e.StepID, e.Message)
	}
	if e.Underlying != nil {
		return msg + ": " + e.Underlying.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain support.
func (e *StepError) Unwrap() error {
	return e.Underlying
}

// Format returns a fully formatted error with all details.
func (e *StepError) Format() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.StepID != "" {
		b.WriteString(fmt.Sprintf("\n  Step: %s", e.StepID))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  Suggestion: %s", e.Suggestion))
	}

	if e.Underlying != nil {
		b.WriteString(fmt.Sprintf("\n  Cause: %s", e.Underlying.Error()))
	}

	return b.String()
}

// NewStepError creates a new StepError with the given code and message.
func NewStepError(code, message string) *StepError {
	return &StepError{
		Code:    code,
		Message: message,
	}
}

// WithStepID returns a new StepError with step ID set.
func (e *StepError) WithStepID(stepID string) *StepError {
	c := *e
	c.StepID = stepID
	return &c
}

// WithSuggestion returns a new StepError with suggestion set.
func (e *StepError) WithSuggestion(suggestion string) *StepError {
	c := *e
	c.Suggestion = suggestion
	return &c
}

// WithUnderlying returns a new StepError wrapping another error.
func (e *StepError) WithUnderlying(err error) *StepError {
	c := *e
	c.Underlying = err
	return &c
}

// MissingPrecondition reports required external state that is absent
// (no SSH key, no terminal, unsupported OS).
func MissingPrecondition(message, suggestion string) *StepError {
	return &StepError{
		Code:       ErrCodeMissingPrecondition,
		Message:    message,
		Suggestion: suggestion,
	}
}

// CommandFailed turns a non-zero command result into an error carrying the
// tool's own output verbatim.
func CommandFailed(command string, result ports.CommandResult) *StepError {
	e := &StepError{
		Code:    ErrCodeCommandFailed,
		Message: fmt.Sprintf("%s exited with status %d", command, result.ExitCode),
	}
	if out := result.Output(); out != "" {
		e.Underlying = errors.New(out)
	}
	return e
}

// ReadinessTimeout wraps an exhausted poll.
func ReadinessTimeout(what string, err error) *StepError {
	return &StepError{
		Code:       ErrCodeReadinessTimeout,
		Message:    fmt.Sprintf("timed out waiting for %s", what),
		Suggestion: "Inspect the external system (pods, services, logs) before re-running.",
		Underlying: err,
	}
}

// NewApplyFailedError creates an error for step apply failure.
func NewApplyFailedError(stepID string, err error) *StepError {
	return &StepError{
		Code:       ErrCodeApplyFailed,
		Message:    "step failed to apply",
		StepID:     stepID,
		Suggestion: "Fix the cause shown below and re-run; completed steps will be skipped.",
		Underlying: err,
	}
}

// NewCheckFailedError creates an error for step check failure.
func NewCheckFailedError(stepID string, err error) *StepError {
	return &StepError{
		Code:       ErrCodeCheckFailed,
		Message:    "step status check failed",
		StepID:     stepID,
		Suggestion: "The step could not determine its current status. Verify connectivity to the probed system.",
		Underlying: err,
	}
}

// Classify returns the most specific error code in err's chain.
// CHECK_FAILED and APPLY_FAILED are only returned when nothing more
// specific is wrapped.
func Classify(err error) string {
	generic := ""
	for err != nil {
		var se *StepError
		if !errors.As(err, &se) {
			break
		}
		switch se.Code {
		case ErrCodeCheckFailed, ErrCodeApplyFailed:
			if generic == "" {
				generic = se.Code
			}
		default:
			return se.Code
		}
		err = se.Underlying
	}
	return generic
}

// Warning marks an error as non-fatal: the run records it and continues.
type Warning struct {
	Err error
}

// Error returns the warning message.
func (w *Warning) Error() string {
	return w.Err.Error()
}

// Unwrap returns the wrapped error.
func (w *Warning) Unwrap() error {
	return w.Err
}

// Warn wraps err as a soft warning. Warn(nil) returns nil.
func Warn(err error) error {
	if err == nil {
		return nil
	}
	return &Warning{Err: err}
}

// Warnf formats a soft warning.
func Warnf(format string, args ...any) error {
	return &Warning{Err: fmt.Errorf(format, args...)}
}

// IsWarning reports whether err is (or wraps) a soft warning.
func IsWarning(err error) bool {
	var w *Warning
	return errors.As(err, &w)
}
