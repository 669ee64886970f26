package tasks

import "github.com/fleetbuild/fleet/internal/component"

// BuildFromProjects registers one task per project for scriptName and links
// dependency edges from each project's declared local-dependencies, unless
// ignoreDependencyOrder is set — in which case no edges are registered at
// all, so every selected project becomes independently Ready and the
// runner's parallelism bound is the only thing gating concurrency
// (spec §6: "ignore-dependency-order... drops edges from the task
// collection, letting all selected projects run in parallel irrespective of
// edges").
//
// Projects with no script named scriptName still get a task, with an empty
// command, so they stay resolvable as a dependency name; the runner treats
// such a task as a no-op, matching spec §4.F's no-op rule.
func BuildFromProjects(projects component.Projects, scriptName string, ignoreDependencyOrder bool, workDirOf func(*component.Project) (workDir, binDir, configTag string)) (*Collection, error) {
	c := NewCollection()

	for _, p := range projects {
		command := p.Scripts[scriptName]
		workDir, binDir, configTag := workDirOf(p)

		if _, err := c.AddTask(Builder{
			ProjectName: p.Name,
			Command:     command,
			WorkDir:     workDir,
			BinDir:      binDir,
			ConfigTag:   configTag,
		}); err != nil {
			return nil, err
		}
	}

	if ignoreDependencyOrder {
		return c, nil
	}

	byName := projects.ByName()

	for _, p := range projects {
		var depNames []string

		for _, dep := range p.Dependencies() {
			if _, ok := byName[dep.Name]; !ok {
				continue // dependency outside the selection, nothing to order against
			}

			depNames = append(depNames, dep.Name)
		}

		if len(depNames) > 0 {
			if err := c.AddDependencies(p.Name, depNames); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}
