// Package graph implements the Project Graph (spec §4.A): an immutable
// directed graph of project nodes with local-dependency edges, plus
// filtered subgraph selection via "to"/"from" sets.
//
// Edge storage is backed by hashicorp/terraform's dag package, the same
// graph library the teacher repo uses for its own HCL dependency graph
// (config/config_graph.go). The graph here is not required to be acyclic
// (spec §3) — cycle detection is deferred to the task collection — so we
// use dag only for storage and deliberately do not call Validate/Walk on it;
// selection is a hand-rolled breadth-first traversal over the dependency and
// reversed-dependency relations, same approach the teacher's own
// walkBreadthFirst takes instead of trusting the library's walk.
package graph

import (
	"github.com/hashicorp/terraform/dag"

	"github.com/fleetbuild/fleet/internal/component"
	"github.com/fleetbuild/fleet/internal/errors"
)

// projectEdge connects two projects by name in the underlying dag.Graph.
type projectEdge struct {
	s, t dag.Vertex
}

func (e *projectEdge) Source() dag.Vertex    { return e.s }
func (e *projectEdge) Target() dag.Vertex    { return e.t }
func (e *projectEdge) Hashcode() interface{} { return e.s.(string) + "->" + e.t.(string) }

// Graph is an immutable directed graph of projects with "A depends on B"
// edges. It is built once per process and never mutated.
type Graph struct {
	projects component.Projects
	byName   map[string]*component.Project
	dag      dag.AcyclicGraph

	// dependents is the reversed edge relation: dependents[name] lists the
	// projects that declare name as a dependency.
	dependents map[string][]*component.Project
}

// Build constructs an immutable graph from projects and their declared
// dependency edges (already resolved as pointers on each Project). It fails
// with ConfigError if a project's dependency list references a project
// object that is not a member of projects.
func Build(projects component.Projects) (*Graph, error) {
	byName := projects.ByName()

	g := &Graph{
		projects:   projects,
		byName:     byName,
		dependents: make(map[string][]*component.Project, len(projects)),
	}

	for _, p := range projects {
		g.dag.Add(p.Name)
	}

	for _, p := range projects {
		for _, dep := range p.Dependencies() {
			if _, ok := byName[dep.Name]; !ok {
				return nil, errors.ConfigError{
					Message: "project \"" + p.Name + "\" declares unknown dependency \"" + dep.Name + "\"",
				}
			}

			g.dag.Connect(&projectEdge{s: p.Name, t: dep.Name})
			g.dependents[dep.Name] = append(g.dependents[dep.Name], p)
		}
	}

	return g, nil
}

// Projects returns every project in the graph, in declaration order.
func (g *Graph) Projects() component.Projects {
	return g.projects
}

// Project looks up a project by name.
func (g *Graph) Project(name string) (*component.Project, bool) {
	p, ok := g.byName[name]
	return p, ok
}

// Select returns the project subset to execute, per spec §4.A: "to" is the
// transitive upstream closure (the named projects plus everything they
// depend on); "from" is the transitive downstream closure via the reversed
// edge relation (the named projects plus everything that depends on them).
// Both empty selects the whole graph; both non-empty unions the two
// closures. Unknown names fail with ConfigError.
func (g *Graph) Select(to, from []string) (component.Projects, error) {
	if len(to) == 0 && len(from) == 0 {
		return g.projects, nil
	}

	selected := map[string]*component.Project{}

	for _, name := range to {
		root, ok := g.byName[name]
		if !ok {
			return nil, errors.ConfigError{Message: "unknown project in --to: \"" + name + "\""}
		}

		g.walkUpstream(root, selected)
	}

	for _, name := range from {
		root, ok := g.byName[name]
		if !ok {
			return nil, errors.ConfigError{Message: "unknown project in --from: \"" + name + "\""}
		}

		g.walkDownstream(root, selected)
	}

	out := make(component.Projects, 0, len(selected))

	for _, p := range g.projects {
		if _, ok := selected[p.Name]; ok {
			out = append(out, p)
		}
	}

	return out, nil
}

// walkUpstream adds root and everything root transitively depends on.
func (g *Graph) walkUpstream(root *component.Project, into map[string]*component.Project) {
	if _, seen := into[root.Name]; seen {
		return
	}

	into[root.Name] = root

	for _, dep := range root.Dependencies() {
		g.walkUpstream(dep, into)
	}
}

// walkDownstream adds root and everything that transitively depends on root.
func (g *Graph) walkDownstream(root *component.Project, into map[string]*component.Project) {
	if _, seen := into[root.Name]; seen {
		return
	}

	into[root.Name] = root

	for _, dependent := range g.dependents[root.Name] {
		g.walkDownstream(dependent, into)
	}
}
