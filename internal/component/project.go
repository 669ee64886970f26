// Package component holds the Project value type shared by the graph,
// queue, and task packages (spec §3). A Project is immutable for the
// lifetime of one build: its scripts and dependency edges never change once
// constructed.
package component

// Project is a unit in the monorepo with its own package metadata, scripts,
// and local-dependency edges to other projects. Identity is Name, which must
// be unique within a Graph.
type Project struct {
	// Name is the project's unique package name, its identity.
	Name string

	// Dir is the absolute project folder.
	Dir string

	// RelDir is the project folder relative to the repository root,
	// POSIX-style separators.
	RelDir string

	// Scripts maps script name to the shell command string to run for it.
	Scripts map[string]string

	// IgnorePatterns are glob patterns the change analyzer excludes from a
	// project's file-hash map. They are matched against each file's
	// repository-relative, POSIX-style path, not a path relative to Dir.
	IgnorePatterns []string

	dependencies []*Project
}

// NewProject constructs a Project with no dependencies or scripts yet; call
// AddDependency and populate Scripts before handing it to a Graph.
func NewProject(name, dir, relDir string) *Project {
	return &Project{
		Name:    name,
		Dir:     dir,
		RelDir:  relDir,
		Scripts: map[string]string{},
	}
}

// AddDependency appends dep to this project's ordered local-dependency list.
// Order is preserved because some collaborators (e.g. declared-cycle
// exceptions) care about the order edges were declared in the manifest.
func (p *Project) AddDependency(dep *Project) {
	p.dependencies = append(p.dependencies, dep)
}

// Dependencies returns the ordered list of local-dependency references.
func (p *Project) Dependencies() []*Project {
	return p.dependencies
}

// Path is the project's identity, used as a map key and for display. It is
// the package name, not a filesystem path.
func (p *Project) Path() string {
	return p.Name
}

// Script looks up a declared script by name.
func (p *Project) Script(name string) (string, bool) {
	cmd, ok := p.Scripts[name]
	return cmd, ok
}

// Projects is an ordered collection of Project pointers, the unit the graph
// and queue packages build from.
type Projects []*Project

// ByName indexes a Projects slice for O(1) lookup.
func (ps Projects) ByName() map[string]*Project {
	out := make(map[string]*Project, len(ps))
	for _, p := range ps {
		out[p.Name] = p
	}

	return out
}
