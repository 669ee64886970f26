package runner

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fleetbuild/fleet/internal/component"
	"github.com/fleetbuild/fleet/internal/errors"
	"github.com/fleetbuild/fleet/internal/queue"
	"github.com/fleetbuild/fleet/internal/tasks"
	"github.com/fleetbuild/fleet/pkg/log"
)

// Runner drives a Task Collection to completion (spec §4.F). One Runner
// serves one invocation of one script across the selected projects.
type Runner struct {
	cfg        Config
	collection *tasks.Collection
	projects   map[string]*component.Project
	scriptName string

	analyzer ChangeAnalyzer
	cache    BuildCache
	shell    ShellRunner
	sink     OutputSink
	log      log.Logger
}

// New constructs a Runner. Every collaborator is an explicit capability
// interface supplied here (spec §9's builder pattern) — there is no plugin
// registry and no package-level state.
func New(cfg Config, collection *tasks.Collection, projects map[string]*component.Project, scriptName string, analyzer ChangeAnalyzer, cache BuildCache, shell ShellRunner, sink OutputSink, logger log.Logger) *Runner {
	if shell == nil {
		shell = DefaultShellRunner{}
	}

	return &Runner{
		cfg:        cfg,
		collection: collection,
		projects:   projects,
		scriptName: scriptName,
		analyzer:   analyzer,
		cache:      cache,
		shell:      shell,
		sink:       sink,
		log:        logger,
	}
}

type completion struct {
	task     *tasks.Task
	out      outcome
	duration time.Duration
}

// Execute drives every task to a terminal state and returns a report plus
// an error that is nil iff the run succeeded overall (spec §4.F).
//
// Concurrency model (spec §5): this method is the single coordinator. All
// task-state transitions happen here, on one goroutine; workers only ever
// submit a completion through the completions channel, never write task
// state directly.
func (r *Runner) Execute(ctx context.Context) (*Report, error) {
	ordered, err := r.collection.OrderedTasks()
	if err != nil {
		return nil, err
	}

	remaining := make(map[string]int, len(ordered))
	for _, t := range ordered {
		remaining[t.Name] = len(r.collection.Dependencies(t))
	}

	frontier := queue.NewFrontier()
	for _, t := range ordered {
		if remaining[t.Name] == 0 {
			frontier.Insert(t)
		}
	}

	report := NewReport()
	completions := make(chan completion)
	sem := semaphore.NewWeighted(int64(r.cfg.ResolvedParallelism()))

	var wg sync.WaitGroup

	launch := func(t *tasks.Task) {
		t.SetStatus(tasks.Executing)

		wg.Add(1)

		go func() {
			defer wg.Done()

			start := time.Now()

			// Acquire observes ctx so a cancellation while waiting for a
			// free slot doesn't leave this goroutine parked forever.
			if err := sem.Acquire(ctx, 1); err != nil {
				completions <- completion{task: t, out: outcome{status: tasks.Blocked, err: err}, duration: time.Since(start)}
				return
			}
			defer sem.Release(1)

			out := r.runPipeline(ctx, t, r.projects[t.Name])

			completions <- completion{task: t, out: out, duration: time.Since(start)}
		}()
	}

	inFlight := 0
	failed := false
	cancelled := false

	for {
		switch {
		case cancelled:
			// External cancellation (spec §4.F): the frontier drains
			// without new launches; in-flight child processes were already
			// signaled by ctx being passed through to exec.CommandContext.
			r.drainFrontier(frontier, report)
		case r.cfg.FailFast && failed:
			// Fail-fast (spec §4.F): no new launches past the first
			// failure, but in-flight tasks are awaited. Tasks still
			// sitting in the frontier never ran.
			r.drainFrontier(frontier, report)
		default:
			for inFlight < r.cfg.ResolvedParallelism() {
				t, ok := frontier.Pop()
				if !ok {
					break
				}

				inFlight++

				launch(t)
			}
		}

		if inFlight == 0 {
			break
		}

		select {
		case <-ctx.Done():
			cancelled = true
		case c := <-completions:
			inFlight--

			c.task.SetStatus(c.out.status)
			report.Record(c.task.Name, c.out.status, c.duration, c.out.err)

			if c.out.status.SuccessLike() {
				r.propagateReady(c.task, remaining, frontier)
			} else {
				failed = true
				r.propagateBlocked(c.task, report)
			}
		}
	}

	wg.Wait()

	return report, r.overallResult(ordered, report)
}

// drainFrontier empties the frontier without launching, recording every
// drained task as Blocked: it is a task that, for this run, never executed.
func (r *Runner) drainFrontier(frontier *queue.Frontier, report *Report) {
	for {
		t, ok := frontier.Pop()
		if !ok {
			return
		}

		t.SetStatus(tasks.Blocked)
		report.Record(t.Name, tasks.Blocked, 0, nil)
	}
}

// propagateReady re-evaluates completed's dependents: once every dependency
// of a dependent is success-like, that dependent becomes Ready and enters
// the frontier (spec §4.F execution loop).
func (r *Runner) propagateReady(completed *tasks.Task, remaining map[string]int, frontier *queue.Frontier) {
	for _, dep := range r.collection.Dependents(completed) {
		if dep.Status() != tasks.Ready {
			continue
		}

		remaining[dep.Name]--
		if remaining[dep.Name] == 0 {
			frontier.Insert(dep)
		}
	}
}

// propagateBlocked marks completed's entire downstream closure Blocked
// (spec §4.F: "Blocked tasks never run; they propagate transitively").
func (r *Runner) propagateBlocked(completed *tasks.Task, report *Report) {
	pending := r.collection.Dependents(completed)
	seen := map[string]bool{}

	for len(pending) > 0 {
		d := pending[0]
		pending = pending[1:]

		if seen[d.Name] {
			continue
		}

		seen[d.Name] = true

		if d.Status().Terminal() {
			continue
		}

		d.SetStatus(tasks.Blocked)
		report.Record(d.Name, tasks.Blocked, 0, nil)

		pending = append(pending, r.collection.Dependents(d)...)
	}
}

// overallResult implements spec §4.F's completion rule: success iff every
// task reached Success, SuccessWithWarning (when allowed), Skipped, or
// FromCache.
func (r *Runner) overallResult(ordered []*tasks.Task, report *Report) error {
	var failures []error

	for _, t := range ordered {
		switch t.Status() {
		case tasks.Success, tasks.Skipped, tasks.FromCache:
		case tasks.SuccessWithWarning:
			if !r.cfg.AllowWarningsInSuccess {
				failures = append(failures, errors.CommandFailure{Project: t.Name, ExitCode: 0, StderrTail: "succeeded with warnings, not allowed"})
			}
		default:
			if res, ok := report.Get(t.Name); ok && res.Err != nil {
				failures = append(failures, res.Err)
			} else {
				failures = append(failures, errors.CommandFailure{Project: t.Name, ExitCode: -1, StderrTail: t.Status().String()})
			}
		}
	}

	if len(failures) == 0 {
		return nil
	}

	var merged error
	for _, f := range failures {
		merged = errors.Append(merged, f)
	}

	return merged
}
