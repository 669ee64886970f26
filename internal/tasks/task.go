// Package tasks implements the Task Collection (spec §4.D): the executable
// task set built from selected projects, validated for acyclicity, and
// annotated with each task's critical-path length.
//
// Per the re-architecture notes in spec §9, tasks don't hold raw pointers to
// each other. The Collection is an arena: tasks are addressed by integer
// index, and a single mutex on the Collection serializes mutation while it
// is being built. Task status is an atomic field, set by the runner's
// single coordinator goroutine (package internal/runner) and safe to read
// from worker goroutines.
package tasks

import "sync/atomic"

// Status is a task's position in the state machine described in spec §4.F.
type Status int32

const (
	// Ready is the initial status: the task has not yet started.
	Ready Status = iota
	// Executing means the task's command is running (or, for a cache hit
	// or skip, is being decided).
	Executing
	// Success means the command exited zero with no stderr output.
	Success
	// SuccessWithWarning means the command exited zero but wrote to
	// stderr, or a post-success cache store failed.
	SuccessWithWarning
	// Skipped means incremental comparison matched and the caller permits
	// it, with no cache restore involved.
	Skipped
	// FromCache means a cache restore populated the project's outputs.
	FromCache
	// Failure means the command exited non-zero.
	Failure
	// Blocked means a dependency reached Failure or Blocked; this task
	// will never run.
	Blocked
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Executing:
		return "Executing"
	case Success:
		return "Success"
	case SuccessWithWarning:
		return "SuccessWithWarning"
	case Skipped:
		return "Skipped"
	case FromCache:
		return "FromCache"
	case Failure:
		return "Failure"
	case Blocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// SuccessLike reports whether s lets dependents proceed (spec glossary).
func (s Status) SuccessLike() bool {
	switch s {
	case Success, SuccessWithWarning, Skipped, FromCache:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is one of the eight states' terminal subset.
func (s Status) Terminal() bool {
	switch s {
	case Success, SuccessWithWarning, Skipped, FromCache, Failure, Blocked:
		return true
	default:
		return false
	}
}

// Builder carries the per-project execution context a task needs: the
// command string and whatever the runner requires to run it. It is
// deliberately a narrow struct, not an interface, since the runner package
// owns the actual execution pipeline (spec §4.F step list) — Task itself
// only carries the inputs to that pipeline.
type Builder struct {
	// ProjectName is also the task Name.
	ProjectName string
	// Command is the shell command string to run in the project's folder.
	// An empty string is a no-op task (spec §4.F tie-break rule).
	Command string
	// WorkDir is the project's folder, the child process's cwd.
	WorkDir string
	// BinDir is prepended to PATH for the child process (spec §6).
	BinDir string
	// ConfigTag feeds the cache fingerprint (spec §3).
	ConfigTag string
}

// Task is one unit of work for one project for one build invocation
// (spec §3). Dependencies/dependents are indices into the owning
// Collection's arena, not pointers — see the package doc.
type Task struct {
	Name    string
	Builder Builder

	index int
	deps  []int
	rdeps []int

	status atomic.Int32

	// criticalPath is memoized; -1 means "not yet computed".
	criticalPath atomic.Int64
}

func newTask(index int, builder Builder) *Task {
	t := &Task{Name: builder.ProjectName, Builder: builder, index: index}
	t.status.Store(int32(Ready))
	t.criticalPath.Store(-1)

	return t
}

// Status returns the task's current status.
func (t *Task) Status() Status {
	return Status(t.status.Load())
}

// SetStatus transitions the task. Callers are expected to be the runner's
// single coordinator goroutine (spec §5: "transitions... serialized with
// respect to that task"), but the field itself is an atomic so a concurrent
// read (e.g. from a report writer) never races.
func (t *Task) SetStatus(s Status) {
	t.status.Store(int32(s))
}

// CriticalPathLength returns the memoized critical-path length, or -1 if
// OrderedTasks has not yet computed it.
func (t *Task) CriticalPathLength() int64 {
	return t.criticalPath.Load()
}
