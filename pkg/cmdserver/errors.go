package cmdserver

import (
	stderrors "errors"
	"fmt"

	"github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// WrapError wraps an error for the sake of showing a stack trace at the top level
// the go-errors package, for some reason, does not return nil when you try to wrap
// a non-error, so we're just doing it here
func WrapError(err error) error {
	if err == nil {
		return err
	}

	return errors.Wrap(err, 0)
}

// ErrCancelled is surfaced by an in-flight RunCommand once Cancel has been
// called on its session, and by Cancel itself when there was nothing to
// interrupt but the session is now closed.
var ErrCancelled = stderrors.New("session cancelled")

// InvalidArgumentError reports a caller-side contract violation: an empty
// argv, a sink or provider registered on a channel that cannot take one, or
// an operation on a closed session. The child process is unaffected.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Reason
}

// ErrSessionClosed is returned by every operation invoked on a closed
// session. Match it with errors.Is.
var ErrSessionClosed = &InvalidArgumentError{Reason: "session is closed"}

// ServerError reports a protocol-level failure: a malformed header, an
// unknown channel byte, a truncated payload, a bad handshake or a missing
// capability. There is no resynchronising a misframed stream, so the session
// that produced one of these is always torn down.
type ServerError struct {
	Reason string
	cause  error
	frame  xerrors.Frame
}

// NewServerError records the caller's frame so the failure site shows up in
// verbose formatting.
func NewServerError(reason string, cause error) *ServerError {
	return &ServerError{
		Reason: reason,
		cause:  cause,
		frame:  xerrors.Caller(1),
	}
}

// FormatError is a function
func (e *ServerError) FormatError(p xerrors.Printer) error {
	p.Printf("command server: %s", e.Reason)
	e.frame.Format(p)
	return e.cause
}

// Format is a function
func (e *ServerError) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

func (e *ServerError) Error() string {
	return fmt.Sprint(e)
}

func (e *ServerError) Unwrap() error {
	return e.cause
}

// LaunchError reports that the child process could not be started at all. It
// unwraps to a ServerError so callers matching the broader class still catch
// it.
type LaunchError struct {
	Binary string
	err    *ServerError
}

func NewLaunchError(binary string, cause error) *LaunchError {
	return &LaunchError{
		Binary: binary,
		err:    NewServerError("launch failed", cause),
	}
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %q: %v", e.Binary, e.err)
}

func (e *LaunchError) Unwrap() error {
	return e.err
}

// CommandError reports a command that ran to completion with an exit code
// the caller deemed fatal. It carries the full CommandResult so callers can
// inspect what the child printed. The session remains usable.
type CommandError struct {
	Message string
	Result  CommandResult
	frame   xerrors.Frame
}

func NewCommandError(message string, result CommandResult) *CommandError {
	return &CommandError{
		Message: message,
		Result:  result,
		frame:   xerrors.Caller(1),
	}
}

// FormatError is a function
func (e *CommandError) FormatError(p xerrors.Printer) error {
	p.Printf("%s (exit code %d)", e.Message, e.Result.ExitCode)
	e.frame.Format(p)
	return nil
}

// Format is a function
func (e *CommandError) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

func (e *CommandError) Error() string {
	return fmt.Sprint(e)
}
