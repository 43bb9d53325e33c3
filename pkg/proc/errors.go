package proc

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies evaluation failures.
type ErrorKind uint8

const (
	NotPaused ErrorKind = iota + 1
	UnhandledExceptionPending
	TimedOutDisabled
	ConcurrentEvaluation
	UnsupportedOnRuntime
	VMRaceDetected
	Timeout
	InternalProtocolError
	MalformedRequest
	DepthExceeded
	Canceled
)

var errorMessages = map[ErrorKind]string{
	NotPaused:                 "function evaluation is only possible while the process is paused",
	UnhandledExceptionPending: "can not evaluate functions while an unhandled exception is pending",
	TimedOutDisabled:          "a previous function evaluation timed out, evaluation is disabled until the process is resumed",
	ConcurrentEvaluation:      "another function evaluation is already in progress",
	UnsupportedOnRuntime:      "operation not supported by the runtime of the debuggee",
	VMRaceDetected:            "the debuggee is not suspended at a point where functions can be evaluated",
	Timeout:                   "function evaluation timed out",
	InternalProtocolError:     "internal debugger error",
	MalformedRequest:          "malformed evaluation request",
	DepthExceeded:             "value type nested too deeply",
	Canceled:                  "function evaluation canceled",
}

func (k ErrorKind) String() string {
	if msg, ok := errorMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// EvalError is the error returned by every evaluation entry point.
type EvalError struct {
	Kind ErrorKind
	// Detail is an optional extra description appended to the message.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

func (e *EvalError) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EvalError) Unwrap() error { return e.Err }

// Is matches any EvalError of the same kind, so that errors.Is(err,
// ErrTimeout) works regardless of Detail and Err.
func (e *EvalError) Is(target error) bool {
	t, ok := target.(*EvalError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotPaused                 = &EvalError{Kind: NotPaused}
	ErrUnhandledExceptionPending = &EvalError{Kind: UnhandledExceptionPending}
	ErrTimedOutDisabled          = &EvalError{Kind: TimedOutDisabled}
	ErrConcurrentEvaluation      = &EvalError{Kind: ConcurrentEvaluation}
	ErrUnsupportedOnRuntime      = &EvalError{Kind: UnsupportedOnRuntime}
	ErrVMRaceDetected            = &EvalError{Kind: VMRaceDetected}
	ErrTimeout                   = &EvalError{Kind: Timeout}
	ErrInternalProtocol          = &EvalError{Kind: InternalProtocolError}
	ErrMalformedRequest          = &EvalError{Kind: MalformedRequest}
	ErrDepthExceeded             = &EvalError{Kind: DepthExceeded}
	ErrCanceled                  = &EvalError{Kind: Canceled}
)

// Errors returned by Agent implementations.
var (
	// ErrVMNotSuspended means the agent refused a request because a thread
	// was not at a safe point.
	ErrVMNotSuspended = errors.New("vm not suspended")
	// ErrAgentTimeout means the agent gave up waiting for the debuggee.
	ErrAgentTimeout = errors.New("agent request timed out")
)

// ErrorKindOf returns the kind of err, or 0 if err is not an EvalError.
func ErrorKindOf(err error) ErrorKind {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return 0
}

func newEvalError(kind ErrorKind, format string, args ...interface{}) *EvalError {
	return &EvalError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// agentError maps an error returned by the agent to an EvalError.
func agentError(err error) error {
	if err == nil {
		return nil
	}
	var ee *EvalError
	switch {
	case errors.As(err, &ee):
		return err
	case errors.Is(err, ErrVMNotSuspended):
		return &EvalError{Kind: VMRaceDetected, Err: err}
	case errors.Is(err, ErrAgentTimeout), errors.Is(err, context.DeadlineExceeded):
		return &EvalError{Kind: Timeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &EvalError{Kind: Canceled, Err: err}
	}
	return &EvalError{Kind: InternalProtocolError, Err: err}
}
