// Package config loads the repository manifest: a root fleet.yml naming
// project directories, each containing its own project.yml with scripts,
// local-dependency names, and change-analyzer ignore patterns. Loading is
// the only place that deals with raw YAML; callers
// downstream get back plain component.Project values (spec §3, SPEC_FULL
// §4 "Repository Manifest").
package config

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/fleetbuild/fleet/internal/component"
	"github.com/fleetbuild/fleet/internal/errors"
)

// rootManifestFile is the name of the repository-root manifest.
const rootManifestFile = "fleet.yml"

// projectManifestFile is the name of each project's own manifest.
const projectManifestFile = "project.yml"

// RootManifest lists where to find projects, as glob patterns relative to
// the repository root (e.g. "services/*", "libs/*").
type RootManifest struct {
	Projects []string `yaml:"projects"`
}

// ProjectManifest is one project's own declared metadata.
type ProjectManifest struct {
	Name           string            `yaml:"name"`
	Dependencies   []string          `yaml:"dependencies"`
	Scripts        map[string]string `yaml:"scripts"`
	IgnorePatterns []string          `yaml:"ignorePatterns"`
}

// Load reads fleet.yml at repoRoot, resolves every project.yml it
// references, and returns the fully linked project set sorted by relative
// directory for deterministic ordering downstream.
func Load(repoRoot string) (component.Projects, error) {
	root, err := readRootManifest(repoRoot)
	if err != nil {
		return nil, err
	}

	dirs, err := resolveProjectDirs(repoRoot, root.Projects)
	if err != nil {
		return nil, err
	}

	projects := make(component.Projects, 0, len(dirs))
	depNames := map[string][]string{}

	for _, dir := range dirs {
		p, deps, err := readProject(repoRoot, dir)
		if err != nil {
			return nil, err
		}

		projects = append(projects, p)
		depNames[p.Name] = deps
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].RelDir < projects[j].RelDir })

	if err := linkDependencies(projects, depNames); err != nil {
		return nil, err
	}

	return projects, nil
}

func readRootManifest(repoRoot string) (RootManifest, error) {
	path := filepath.Join(repoRoot, rootManifestFile)

	b, err := os.ReadFile(path)
	if err != nil {
		return RootManifest{}, errors.ConfigError{Message: "cannot read " + path + ": " + err.Error()}
	}

	var root RootManifest
	if err := yaml.Unmarshal(b, &root); err != nil {
		return RootManifest{}, errors.ConfigError{Message: "cannot parse " + path + ": " + err.Error()}
	}

	return root, nil
}

func resolveProjectDirs(repoRoot string, patterns []string) ([]string, error) {
	seen := map[string]bool{}

	var dirs []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(repoRoot, pattern))
		if err != nil {
			return nil, errors.ConfigError{Message: "invalid project glob " + pattern + ": " + err.Error()}
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.IsDir() {
				continue
			}

			if _, ok := seen[m]; ok {
				continue
			}

			seen[m] = true
			dirs = append(dirs, m)
		}
	}

	return dirs, nil
}

func readProject(repoRoot, dir string) (*component.Project, []string, error) {
	path := filepath.Join(dir, projectManifestFile)

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.ConfigError{Message: "cannot read " + path + ": " + err.Error()}
	}

	var manifest ProjectManifest
	if err := yaml.Unmarshal(b, &manifest); err != nil {
		return nil, nil, errors.ConfigError{Message: "cannot parse " + path + ": " + err.Error()}
	}

	if manifest.Name == "" {
		return nil, nil, errors.ConfigError{Message: path + " is missing a name"}
	}

	relDir, err := filepath.Rel(repoRoot, dir)
	if err != nil {
		return nil, nil, errors.ConfigError{Message: "cannot compute relative dir for " + dir + ": " + err.Error()}
	}

	p := component.NewProject(manifest.Name, dir, filepath.ToSlash(relDir))
	p.IgnorePatterns = manifest.IgnorePatterns

	for name, cmd := range manifest.Scripts {
		p.Scripts[name] = cmd
	}

	return p, manifest.Dependencies, nil
}

// linkDependencies resolves each project's declared dependency names
// against the full set, in declaration order (component.Project's
// AddDependency keeps that order for collaborators that care about it).
func linkDependencies(projects component.Projects, depNames map[string][]string) error {
	byName := projects.ByName()

	for _, p := range projects {
		for _, depName := range depNames[p.Name] {
			dep, ok := byName[depName]
			if !ok {
				return errors.ConfigError{Message: "project " + p.Name + " depends on unknown project " + depName}
			}

			p.AddDependency(dep)
		}
	}

	return nil
}
