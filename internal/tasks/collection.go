package tasks

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/fleetbuild/fleet/internal/errors"
)

// Collection is the mapping task-name -> task (spec §3), built once via
// AddTask/AddDependencies and then frozen by a call to OrderedTasks. The
// by-name index is a lock-free concurrent map (xsync.MapOf) so that, once
// frozen, Task lookups can run concurrently without going through the
// single mutex that guards mutation during construction.
type Collection struct {
	mu    sync.Mutex
	arena []*Task
	index *xsync.MapOf[string, int]
	frozen bool
}

// NewCollection constructs an empty, mutable task collection.
func NewCollection() *Collection {
	return &Collection{
		index: xsync.NewMapOf[string, int](),
	}
}

// AddTask registers a new task for builder.ProjectName. It fails with
// DuplicateTask if the name is already registered.
func (c *Collection) AddTask(builder Builder) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return nil, errors.New("task collection is frozen")
	}

	if _, exists := c.index.Load(builder.ProjectName); exists {
		return nil, errors.DuplicateTask{Name: builder.ProjectName}
	}

	idx := len(c.arena)
	t := newTask(idx, builder)
	c.arena = append(c.arena, t)
	c.index.Store(builder.ProjectName, idx)

	return t, nil
}

// AddDependencies links an already-registered task to its dependencies by
// name, recording the inverse (dependents) edge on each dependency too. It
// fails with UnknownTask if any name isn't registered.
func (c *Collection) AddDependencies(name string, depNames []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return errors.New("task collection is frozen")
	}

	idx, ok := c.index.Load(name)
	if !ok {
		return errors.UnknownTask{Name: name}
	}

	for _, depName := range depNames {
		depIdx, ok := c.index.Load(depName)
		if !ok {
			return errors.UnknownTask{Name: depName}
		}

		c.arena[idx].deps = append(c.arena[idx].deps, depIdx)
		c.arena[depIdx].rdeps = append(c.arena[depIdx].rdeps, idx)
	}

	return nil
}

// Task looks up a task by name. Safe to call concurrently once frozen.
func (c *Collection) Task(name string) (*Task, bool) {
	idx, ok := c.index.Load(name)
	if !ok {
		return nil, false
	}

	return c.arena[idx], true
}

// Dependencies returns the live Task pointers name depends on.
func (c *Collection) Dependencies(t *Task) []*Task {
	out := make([]*Task, len(t.deps))
	for i, idx := range t.deps {
		out[i] = c.arena[idx]
	}

	return out
}

// Dependents returns the live Task pointers that depend on t.
func (c *Collection) Dependents(t *Task) []*Task {
	out := make([]*Task, len(t.rdeps))
	for i, idx := range t.rdeps {
		out[i] = c.arena[idx]
	}

	return out
}

// All returns every task in the collection, in registration order.
func (c *Collection) All() []*Task {
	out := make([]*Task, len(c.arena))
	copy(out, c.arena)

	return out
}

const (
	unvisited = 0
	onStack   = 1
	done      = 2
)

// OrderedTasks performs the acyclicity check, memoizes each task's
// critical-path length, freezes the collection against further mutation,
// and returns the tasks sorted by descending critical-path length with a
// lexicographic name tie-break (spec §4.D).
//
// Acyclicity uses a depth-first traversal over the dependent relation,
// tracking an active stack; revisiting a stack member fails with
// CyclicDependency quoting the chain from the revisited task back to
// itself, in traversal order (e.g. "A -> B -> A"). A separate visited set
// prevents re-traversal of already-cleared subtrees.
func (c *Collection) OrderedTasks() ([]*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := make([]int, len(c.arena))
	stack := make([]int, 0, len(c.arena))

	var detect func(idx int) error
	detect = func(idx int) error {
		switch state[idx] {
		case done:
			return nil
		case onStack:
			chain := make([]string, 0, len(stack)+1)

			start := -1
			for i, s := range stack {
				if s == idx {
					start = i
					break
				}
			}

			for i := start; i < len(stack); i++ {
				chain = append(chain, c.arena[stack[i]].Name)
			}

			chain = append(chain, c.arena[idx].Name)

			return errors.CyclicDependency{Chain: chain}
		}

		state[idx] = onStack
		stack = append(stack, idx)

		for _, depIdx := range c.arena[idx].rdeps {
			if err := detect(depIdx); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[idx] = done

		return nil
	}

	for idx := range c.arena {
		if state[idx] == unvisited {
			if err := detect(idx); err != nil {
				return nil, err
			}
		}
	}

	for _, t := range c.arena {
		c.computeCriticalPath(t)
	}

	c.frozen = true

	ordered := make([]*Task, len(c.arena))
	copy(ordered, c.arena)

	sort.Slice(ordered, func(i, j int) bool {
		ci, cj := ordered[i].CriticalPathLength(), ordered[j].CriticalPathLength()
		if ci != cj {
			return ci > cj
		}

		return ordered[i].Name < ordered[j].Name
	})

	return ordered, nil
}

// computeCriticalPath memoizes t's critical-path length: 0 if t has no
// dependents, else 1 + max over dependents' critical-path lengths.
func (c *Collection) computeCriticalPath(t *Task) int64 {
	if cp := t.criticalPath.Load(); cp >= 0 {
		return cp
	}

	var best int64 = -1

	for _, depIdx := range t.rdeps {
		dep := c.arena[depIdx]

		cp := c.computeCriticalPath(dep)
		if cp > best {
			best = cp
		}
	}

	var result int64
	if best < 0 {
		result = 0
	} else {
		result = best + 1
	}

	t.criticalPath.Store(result)

	return result
}
