package prism

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeExecution  ErrorType = "execution"
	ErrorTypeRegistry   ErrorType = "registry"
	ErrorTypeMetadata   ErrorType = "metadata"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error kinds. A kind is a stable, machine-readable identifier carried on
// every Error; embedders branch on kinds, never on message text.
const (
	// Query validation
	ErrKindUnknownField       = "query/unknown-field"
	ErrKindUnconnectedCubes   = "query/unconnected-cubes"
	ErrKindCalcCycle          = "query/calc-cycle"
	ErrKindCalcUnresolved     = "query/calc-unresolved"
	ErrKindOffsetWithoutLimit = "query/offset-without-limit"
	ErrKindInvalidGranularity = "query/invalid-granularity"
	ErrKindIncompatibleWindow = "query/incompatible-window"
	ErrKindInvalidOrderField  = "query/invalid-order-field"
	ErrKindInvalidDateRange   = "query/invalid-date-range"
	ErrKindUnsupportedMeasure = "query/unsupported-measure"

	// Flow validation
	ErrKindFlowInvalidDimension    = "flow/invalid-dimension"
	ErrKindFlowMissingStartingStep = "flow/missing-starting-step"
	ErrKindFlowDepthOutOfRange     = "flow/depth-out-of-range"
	ErrKindFlowLateralUnsupported  = "flow/lateral-unsupported"
	ErrKindFlowEngineUnsupported   = "flow/engine-unsupported"

	// Execution
	ErrKindDriverError          = "exec/driver-error"
	ErrKindCancelled            = "exec/cancelled"
	ErrKindTimeout              = "exec/timeout"
	ErrKindEmptyResultMalformed = "exec/empty-result-malformed"

	// Registry
	ErrKindDuplicateCube  = "registry/duplicate-cube"
	ErrKindDuplicateField = "registry/duplicate-field"
	ErrKindUnresolvedJoin = "registry/unresolved-join"

	// Metadata
	ErrKindMetaUnavailable = "meta/unavailable"
)

// Error is the unified error value produced by the planner, registry and
// executor. SQL carries the statement text for execution errors; parameter
// values are deliberately never included.
type Error struct {
	Type    ErrorType      `json:"type"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	SQL     string         `json:"sql,omitempty"`
	Hint    string         `json:"hint,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSQL attaches the statement text to the error.
func (e *Error) WithSQL(sql string) *Error {
	e.SQL = sql
	return e
}

// WithHint attaches a remediation hint.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithCause attaches the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail adds a single detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewError creates a new Error of the given type and kind.
func NewError(errorType ErrorType, kind, message string) *Error {
	return &Error{
		Type:    errorType,
		Kind:    kind,
		Message: message,
	}
}

// NewValidationError creates a planning-stage validation error.
func NewValidationError(kind, message string) *Error {
	return NewError(ErrorTypeValidation, kind, message)
}

// NewExecutionError creates an execution-stage error wrapping the driver's
// failure. The SQL text is attached by the caller; parameter values are not.
func NewExecutionError(kind, message string, cause error) *Error {
	return NewError(ErrorTypeExecution, kind, message).WithCause(cause)
}

// NewRegistryError creates a cube-registration error.
func NewRegistryError(kind, message string) *Error {
	return NewError(ErrorTypeRegistry, kind, message)
}

// NewUnknownFieldError reports a cube-qualified reference that resolves to
// no registered cube or field.
func NewUnknownFieldError(member string) *Error {
	return NewValidationError(ErrKindUnknownField,
		fmt.Sprintf("unknown field '%s'", member)).
		WithDetail("member", member)
}

// NewUnconnectedCubesError reports a referenced cube set with no join path.
func NewUnconnectedCubesError(cubes []string) *Error {
	return NewValidationError(ErrKindUnconnectedCubes,
		fmt.Sprintf("no join path connects cubes %v", cubes)).
		WithDetail("cubes", cubes).
		WithHint("declare a join between the cubes or remove the disconnected reference")
}

// NewCancelledError reports a query aborted through its context.
func NewCancelledError(cause error) *Error {
	return NewExecutionError(ErrKindCancelled, "query cancelled", cause)
}

// NewTimeoutError reports a query that exceeded its wall-clock budget.
func NewTimeoutError(cause error) *Error {
	return NewExecutionError(ErrKindTimeout, "query timed out", cause)
}

// NewDriverError wraps a driver failure. The message includes the parameter
// count so operators can correlate with logs without exposing values.
func NewDriverError(sql string, paramCount int, cause error) *Error {
	return NewExecutionError(ErrKindDriverError,
		fmt.Sprintf("driver error executing statement with %d parameters", paramCount), cause).
		WithSQL(sql)
}

// AsError extracts a *Error from err's chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// ErrorKind returns the kind of err, or "" when err carries none.
func ErrorKind(err error) string {
	if e := AsError(err); e != nil {
		return e.Kind
	}
	return ""
}

// IsValidationError checks if an error is a planning validation error.
func IsValidationError(err error) bool {
	e := AsError(err)
	return e != nil && e.Type == ErrorTypeValidation
}

// IsExecutionError checks if an error is an execution error.
func IsExecutionError(err error) bool {
	e := AsError(err)
	return e != nil && e.Type == ErrorTypeExecution
}

// IsCancelled checks if an error reports context cancellation.
func IsCancelled(err error) bool {
	return ErrorKind(err) == ErrKindCancelled
}

// IsTimeout checks if an error reports a wall-clock timeout.
func IsTimeout(err error) bool {
	return ErrorKind(err) == ErrKindTimeout
}
