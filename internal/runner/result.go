package runner

import (
	"sort"
	"sync"
	"time"

	"github.com/fleetbuild/fleet/internal/tasks"
)

// TaskResult is one task's terminal outcome, retained for the report writer
// and telemetry sink (spec §6: "duration and per-task result are reported to
// a telemetry sink if configured").
type TaskResult struct {
	Name     string
	Status   tasks.Status
	Duration time.Duration
	Err      error
}

// Report collects every task's terminal result for one run.
type Report struct {
	mu      sync.Mutex
	results map[string]TaskResult
}

// NewReport constructs an empty report.
func NewReport() *Report {
	return &Report{results: map[string]TaskResult{}}
}

// Record stores (or overwrites, for the fail-fast drain path) a task's
// result.
func (r *Report) Record(name string, status tasks.Status, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[name] = TaskResult{Name: name, Status: status, Duration: duration, Err: err}
}

// Get looks up a single task's recorded result.
func (r *Report) Get(name string) (TaskResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.results[name]

	return res, ok
}

// Results returns every recorded result, sorted by task name for
// deterministic report rendering.
func (r *Report) Results() []TaskResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]TaskResult, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}
