// Package errors provides the typed error values the scheduler core
// distinguishes (spec §7). Callers branch on kind with errors.As rather than
// on an exception type; every value here still satisfies the error interface
// so it composes with fmt.Errorf("%w", ...) and multierror.
package errors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	"github.com/hashicorp/go-multierror"
)

// New wraps go-errors so fatal, caller-facing errors carry a stack trace.
func New(msg string) error {
	return goerrors.New(msg)
}

// Errorf formats a message and, when args include a %w-wrapped error,
// preserves it for errors.Is/errors.As while still attaching a stack trace.
func Errorf(format string, args ...any) error {
	return goerrors.WrapPrefix(fmt.Errorf(format, args...), "", 1)
}

// WithStackTrace attaches a stack trace to an existing error, if it doesn't
// already carry one.
func WithStackTrace(err error) error {
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, 1)
}

// Append accumulates task-local failures into a single run-level error,
// mirroring the non-fail-fast "run to completion" semantics of spec §4.F.
func Append(existing error, errs ...error) error {
	merr, ok := existing.(*multierror.Error)
	if !ok {
		merr = &multierror.Error{}
		if existing != nil {
			merr = multierror.Append(merr, existing)
		}
	}

	return multierror.Append(merr, errs...).ErrorOrNil()
}

// ConfigError is fatal, raised before execute() when a graph or selection
// references an unknown project.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string { return "config error: " + e.Message }

// DuplicateTask is fatal task-collection misuse: the same task name was
// registered twice.
type DuplicateTask struct {
	Name string
}

func (e DuplicateTask) Error() string {
	return fmt.Sprintf("task %q is already registered", e.Name)
}

// UnknownTask is fatal task-collection misuse: a dependency name does not
// resolve to a registered task.
type UnknownTask struct {
	Name string
}

func (e UnknownTask) Error() string {
	return fmt.Sprintf("task %q is not registered", e.Name)
}

// CyclicDependency carries the full cycle chain, in traversal order from
// the revisited task back to itself, as task names (e.g. A -> B -> A).
type CyclicDependency struct {
	Chain []string
}

func (e CyclicDependency) Error() string {
	msg := "cyclic dependency detected: "

	for i, name := range e.Chain {
		if i > 0 {
			msg += " -> "
		}

		msg += name
	}

	return msg
}

// AnalyzerUnavailable is non-fatal: it degrades the affected task to
// always-run and uncacheable (spec §4.B, §7).
type AnalyzerUnavailable struct {
	Project string
	Reason  string
}

func (e AnalyzerUnavailable) Error() string {
	return fmt.Sprintf("change analyzer unavailable for %q: %s", e.Project, e.Reason)
}

// CommandFailure is per-task; it does not abort other tasks by default.
type CommandFailure struct {
	Project    string
	ExitCode   int
	StderrTail string
}

func (e CommandFailure) Error() string {
	return fmt.Sprintf("command failed in %q with exit code %d", e.Project, e.ExitCode)
}

// CacheError is per-task. Restore failures degrade to a cache miss; store
// failures degrade the outcome to SuccessWithWarning.
type CacheError struct {
	Project string
	Op      string
	Cause   error
}

func (e CacheError) Error() string {
	return fmt.Sprintf("cache %s failed for %q: %v", e.Op, e.Project, e.Cause)
}

func (e CacheError) Unwrap() error { return e.Cause }

// IoError on a state-file write does not fail the task; the next run simply
// will not skip.
type IoError struct {
	Path  string
	Cause error
}

func (e IoError) Error() string {
	return fmt.Sprintf("io error on %q: %v", e.Path, e.Cause)
}

func (e IoError) Unwrap() error { return e.Cause }

// AlreadyReportedError marks a failure whose details were already written
// for the user: cmd/fleet wraps a runner failure in it after printing the
// run summary, and the process still exits non-zero. Its message is the
// wrapped cause's, and cmd/fleet prints it like any other error.
type AlreadyReportedError struct {
	Cause error
}

func (e AlreadyReportedError) Error() string {
	if e.Cause == nil {
		return "already reported"
	}

	return e.Cause.Error()
}

func (e AlreadyReportedError) Unwrap() error { return e.Cause }
