// Package runner implements the Task Runner (spec §4.F): a parallel
// scheduler that executes ready tasks up to a concurrency limit, applies
// per-task incremental/cache policy, and propagates task status through the
// graph.
package runner

import "runtime"

// Config is the immutable RunnerConfig passed into New (spec §9: "pass an
// immutable RunnerConfig value into new(); never read globals inside the
// core").
type Config struct {
	// Parallelism <= 0 means "max" (hardware threads); 1 forces serial
	// execution.
	Parallelism int

	// Quiet suppresses Stdout on the human-facing stream.
	Quiet bool

	// ChangedProjectsOnly restricts rebuild to projects with local
	// changes, not their downstream (spec §4.F tie-break rules).
	ChangedProjectsOnly bool

	// AllowWarningsInSuccess: when false, any SuccessWithWarning task
	// fails the overall run.
	AllowWarningsInSuccess bool

	// Incremental: false forces every task to execute.
	Incremental bool

	// CacheEnabled gates whether the build cache is consulted at all.
	CacheEnabled bool

	// FailFast: when true, no new task launches are initiated after the
	// first Failure, but in-flight tasks are awaited.
	FailFast bool

	// IgnoredWarningPatterns are stderr substrings that do not count as a
	// warning (SPEC_FULL §5 supplement, answering the open question).
	IgnoredWarningPatterns []string
}

// ResolvedParallelism returns the actual worker-pool size: hardware thread
// count when Parallelism <= 0, else Parallelism itself.
func (c Config) ResolvedParallelism() int {
	if c.Parallelism <= 0 {
		return runtime.NumCPU()
	}

	return c.Parallelism
}
