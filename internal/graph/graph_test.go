package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbuild/fleet/internal/component"
	"github.com/fleetbuild/fleet/internal/graph"
)

// diamond builds A <- B, A <- C, B <- D, C <- D (D depends on B and C, both
// of which depend on A).
func diamond() component.Projects {
	a := component.NewProject("a", "/a", "a")
	b := component.NewProject("b", "/b", "b")
	c := component.NewProject("c", "/c", "c")
	d := component.NewProject("d", "/d", "d")

	b.AddDependency(a)
	c.AddDependency(a)
	d.AddDependency(b)
	d.AddDependency(c)

	return component.Projects{a, b, c, d}
}

func TestBuildUnknownDependencyFails(t *testing.T) {
	t.Parallel()

	a := component.NewProject("a", "/a", "a")
	ghost := component.NewProject("ghost", "/ghost", "ghost")
	a.AddDependency(ghost)

	_, err := graph.Build(component.Projects{a})
	require.Error(t, err)
}

func TestSelectEmptyReturnsWholeGraph(t *testing.T) {
	t.Parallel()

	g, err := graph.Build(diamond())
	require.NoError(t, err)

	selected, err := g.Select(nil, nil)
	require.NoError(t, err)
	assert.Len(t, selected, 4)
}

func TestSelectToIsUpstreamClosure(t *testing.T) {
	t.Parallel()

	g, err := graph.Build(diamond())
	require.NoError(t, err)

	selected, err := g.Select([]string{"b"}, nil)
	require.NoError(t, err)

	names := namesOf(selected)
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestSelectFromIsDownstreamClosure(t *testing.T) {
	t.Parallel()

	g, err := graph.Build(diamond())
	require.NoError(t, err)

	selected, err := g.Select(nil, []string{"a"})
	require.NoError(t, err)

	names := namesOf(selected)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, names)
}

func TestSelectUnionsToAndFrom(t *testing.T) {
	t.Parallel()

	g, err := graph.Build(diamond())
	require.NoError(t, err)

	selected, err := g.Select([]string{"b"}, []string{"c"})
	require.NoError(t, err)

	names := namesOf(selected)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, names)
}

func TestSelectUnknownNameFails(t *testing.T) {
	t.Parallel()

	g, err := graph.Build(diamond())
	require.NoError(t, err)

	_, err = g.Select([]string{"nope"}, nil)
	require.Error(t, err)
}

func namesOf(projects component.Projects) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.Name
	}

	return out
}
