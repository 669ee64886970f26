package runner_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbuild/fleet/internal/buildcache"
	"github.com/fleetbuild/fleet/internal/changeanalyzer"
	"github.com/fleetbuild/fleet/internal/collator"
	"github.com/fleetbuild/fleet/internal/component"
	"github.com/fleetbuild/fleet/internal/runner"
	"github.com/fleetbuild/fleet/internal/tasks"
	"github.com/fleetbuild/fleet/pkg/log"
)

// scriptedShell fakes command execution: the "command" string is the
// project name itself, looked up in exitCodes (default 0), and every
// invocation is recorded in the order it started.
type scriptedShell struct {
	mu        sync.Mutex
	order     []string
	exitCodes map[string]int
}

func (s *scriptedShell) Run(_ context.Context, _, _, command string, onChunk func(stream collator.Stream, chunk []byte)) (int, error) {
	s.mu.Lock()
	s.order = append(s.order, command)
	s.mu.Unlock()

	onChunk(collator.Stdout, []byte("ran "+command+"\n"))

	return s.exitCodes[command], nil
}

func (s *scriptedShell) startedBefore(a, b string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ia, ib := -1, -1

	for i, name := range s.order {
		if name == a {
			ia = i
		}

		if name == b {
			ib = i
		}
	}

	return ia >= 0 && ib >= 0 && ia < ib
}

type noopAnalyzer struct{}

func (noopAnalyzer) GetPackageDeps(context.Context, *component.Project) (changeanalyzer.FileHashMap, error) {
	return changeanalyzer.FileHashMap{}, nil
}

type noopCache struct{}

func (noopCache) TryRestore(context.Context, string, string) (buildcache.Result, error) {
	return buildcache.Miss, nil
}

func (noopCache) TryStore(context.Context, string, string, bool) (buildcache.Result, error) {
	return buildcache.Skipped, nil
}

func newTestRunner(t *testing.T, collection *tasks.Collection, projects map[string]*component.Project, shell *scriptedShell, cfg runner.Config) *runner.Runner {
	t.Helper()

	sink := collator.New(&strings.Builder{}, true)

	return runner.New(cfg, collection, projects, "build", noopAnalyzer{}, noopCache{}, shell, sink, log.Default())
}

func testProject(t *testing.T, name string) *component.Project {
	t.Helper()

	p := component.NewProject(name, t.TempDir(), name)
	p.Scripts["build"] = name

	return p
}

func linearChain(t *testing.T) (*tasks.Collection, map[string]*component.Project) {
	t.Helper()

	a, b, c := testProject(t, "A"), testProject(t, "B"), testProject(t, "C")
	b.AddDependency(a)
	c.AddDependency(b)

	projects := component.Projects{a, b, c}

	coll, err := tasks.BuildFromProjects(projects, "build", false, func(p *component.Project) (string, string, string) {
		return p.Dir, "", "v1"
	})
	require.NoError(t, err)

	return coll, projects.ByName()
}

func diamond(t *testing.T) (*tasks.Collection, map[string]*component.Project) {
	t.Helper()

	a, b, c, d := testProject(t, "A"), testProject(t, "B"), testProject(t, "C"), testProject(t, "D")
	b.AddDependency(a)
	c.AddDependency(a)
	d.AddDependency(b)
	d.AddDependency(c)

	projects := component.Projects{a, b, c, d}

	coll, err := tasks.BuildFromProjects(projects, "build", false, func(p *component.Project) (string, string, string) {
		return p.Dir, "", "v1"
	})
	require.NoError(t, err)

	return coll, projects.ByName()
}

func TestLinearChainRunsInDependencyOrder(t *testing.T) {
	t.Parallel()

	coll, projects := linearChain(t)
	shell := &scriptedShell{exitCodes: map[string]int{}}
	r := newTestRunner(t, coll, projects, shell, runner.Config{Parallelism: 2})

	report, err := r.Execute(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"A", "B", "C"} {
		res, ok := report.Get(name)
		require.True(t, ok)
		assert.Equal(t, tasks.Success, res.Status)
	}

	assert.True(t, shell.startedBefore("A", "B"))
	assert.True(t, shell.startedBefore("B", "C"))
}

func TestDiamondAllSucceed(t *testing.T) {
	t.Parallel()

	coll, projects := diamond(t)
	shell := &scriptedShell{exitCodes: map[string]int{}}
	r := newTestRunner(t, coll, projects, shell, runner.Config{Parallelism: 3})

	report, err := r.Execute(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"A", "B", "C", "D"} {
		res, ok := report.Get(name)
		require.True(t, ok)
		assert.Equal(t, tasks.Success, res.Status)
	}

	assert.True(t, shell.startedBefore("A", "B"))
	assert.True(t, shell.startedBefore("A", "C"))
	assert.True(t, shell.startedBefore("B", "D"))
	assert.True(t, shell.startedBefore("C", "D"))
}

func TestDiamondMiddleFailureBlocksDownstream(t *testing.T) {
	t.Parallel()

	coll, projects := diamond(t)
	shell := &scriptedShell{exitCodes: map[string]int{"B": 1}}
	r := newTestRunner(t, coll, projects, shell, runner.Config{Parallelism: 3})

	rep, err := r.Execute(context.Background())
	require.Error(t, err)

	aRes, _ := rep.Get("A")
	bRes, _ := rep.Get("B")
	cRes, _ := rep.Get("C")
	dRes, _ := rep.Get("D")

	assert.Equal(t, tasks.Success, aRes.Status)
	assert.Equal(t, tasks.Failure, bRes.Status)
	assert.Equal(t, tasks.Success, cRes.Status)
	assert.Equal(t, tasks.Blocked, dRes.Status)
}

func TestIncrementalSecondRunSkipsUnchangedTasks(t *testing.T) {
	t.Parallel()

	coll, projects := diamond(t)
	shell := &scriptedShell{exitCodes: map[string]int{}}
	cfg := runner.Config{Parallelism: 3, Incremental: true}
	r := newTestRunner(t, coll, projects, shell, cfg)

	_, err := r.Execute(context.Background())
	require.NoError(t, err)

	coll2, err := tasks.BuildFromProjects(component.Projects{projects["A"], projects["B"], projects["C"], projects["D"]}, "build", false, func(p *component.Project) (string, string, string) {
		return p.Dir, "", "v1"
	})
	require.NoError(t, err)

	r2 := newTestRunner(t, coll2, projects, shell, cfg)

	report, err := r2.Execute(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"A", "B", "C", "D"} {
		res, ok := report.Get(name)
		require.True(t, ok)
		assert.Equal(t, tasks.Skipped, res.Status, fmt.Sprintf("task %s should be skipped on the second run", name))
	}
}

func TestNoIncrementalForcesExecutionEvenUnderChangedProjectsOnly(t *testing.T) {
	t.Parallel()

	coll, projects := diamond(t)
	shell := &scriptedShell{exitCodes: map[string]int{}}
	cfg := runner.Config{Parallelism: 3, Incremental: true, ChangedProjectsOnly: true}
	r := newTestRunner(t, coll, projects, shell, cfg)

	_, err := r.Execute(context.Background())
	require.NoError(t, err)

	// Same projects (same on-disk state files), a fresh collection, but
	// Incremental: false this time: every task must still execute, the
	// "no-incremental forces every task to execute" rule (spec §6) is not
	// allowed to be overridden by ChangedProjectsOnly.
	coll2, err := tasks.BuildFromProjects(component.Projects{projects["A"], projects["B"], projects["C"], projects["D"]}, "build", false, func(p *component.Project) (string, string, string) {
		return p.Dir, "", "v1"
	})
	require.NoError(t, err)

	shell2 := &scriptedShell{exitCodes: map[string]int{}}
	cfg2 := runner.Config{Parallelism: 3, Incremental: false, ChangedProjectsOnly: true}
	r2 := newTestRunner(t, coll2, projects, shell2, cfg2)

	report, err := r2.Execute(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"A", "B", "C", "D"} {
		res, ok := report.Get(name)
		require.True(t, ok)
		assert.Equal(t, tasks.Success, res.Status, fmt.Sprintf("task %s should execute despite matching prior state", name))
	}
}

func TestCycleNeverReachesExecute(t *testing.T) {
	t.Parallel()

	coll := tasks.NewCollection()
	_, err := coll.AddTask(tasks.Builder{ProjectName: "A"})
	require.NoError(t, err)
	_, err = coll.AddTask(tasks.Builder{ProjectName: "B"})
	require.NoError(t, err)
	require.NoError(t, coll.AddDependencies("A", []string{"B"}))
	require.NoError(t, coll.AddDependencies("B", []string{"A"}))

	r := runner.New(runner.Config{}, coll, nil, "build", noopAnalyzer{}, noopCache{}, &scriptedShell{}, collator.New(&strings.Builder{}, true), log.Default())

	_, err = r.Execute(context.Background())
	require.Error(t, err)
}
