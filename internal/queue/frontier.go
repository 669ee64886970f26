// Package queue implements the Task Runner's ready frontier: the set of
// Ready tasks ordered by descending critical-path length, name-tiebroken,
// that the worker pool pulls from (spec §4.F "Execution loop").
//
// The teacher's own internal/queue builds one static, sorted order up
// front (component dependency level, alphabetical within a level). Ours
// generalizes that into a live structure: tasks are inserted as they become
// Ready over the course of a run (when a dependency completes) and popped
// as workers free up, re-sorting on each insert so the invariant
// ("whenever two tasks are simultaneously Ready... the one with the larger
// critical-path length starts next", spec §8 property 4) holds at every
// instant, not just at construction.
package queue

import (
	"sort"
	"sync"

	"github.com/fleetbuild/fleet/internal/tasks"
)

// Frontier is a concurrency-safe, priority-ordered set of Ready tasks.
type Frontier struct {
	mu      sync.Mutex
	entries []*tasks.Task
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{}
}

// Insert adds t to the frontier, maintaining descending critical-path order
// with a lexicographic name tie-break.
func (f *Frontier) Insert(t *tasks.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := sort.Search(len(f.entries), func(i int) bool {
		return less(t, f.entries[i])
	})

	f.entries = append(f.entries, nil)
	copy(f.entries[i+1:], f.entries[i:])
	f.entries[i] = t
}

// less reports whether a should be popped before b: higher critical-path
// length first, then lexicographically smaller name.
func less(a, b *tasks.Task) bool {
	ca, cb := a.CriticalPathLength(), b.CriticalPathLength()
	if ca != cb {
		return ca > cb
	}

	return a.Name < b.Name
}

// Pop removes and returns the highest-priority task, or (nil, false) if the
// frontier is empty.
func (f *Frontier) Pop() (*tasks.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.entries) == 0 {
		return nil, false
	}

	t := f.entries[0]
	f.entries = f.entries[1:]

	return t, true
}

// Len reports how many tasks are currently queued.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.entries)
}
