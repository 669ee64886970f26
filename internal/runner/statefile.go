package runner

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/fleetbuild/fleet/internal/changeanalyzer"
	"github.com/fleetbuild/fleet/internal/errors"
)

// stateFilePath is fixed per spec §6: package-deps.<command>.json, named
// after the script (e.g. "build", "test"), not the task or project, so
// different scripts for the same project never collide.
func stateFilePath(workDir, scriptName string) string {
	return filepath.Join(workDir, ".fleet", "package-deps."+scriptName+".json")
}

// projectBuildState mirrors the JSON object at spec §6: the file-hash map
// plus the exact command string that produced it. Absence of the file means
// "never built".
type projectBuildState struct {
	Files     map[string]string `json:"files"`
	Arguments string            `json:"arguments"`
}

// readState loads the prior build state, if any. A missing or corrupt file
// is treated as "never built" rather than an error: the next build simply
// won't skip.
func readState(workDir, scriptName string) (projectBuildState, bool) {
	b, err := os.ReadFile(stateFilePath(workDir, scriptName))
	if err != nil {
		return projectBuildState{}, false
	}

	var st projectBuildState
	if err := json.Unmarshal(b, &st); err != nil {
		return projectBuildState{}, false
	}

	return st, true
}

// writeState persists the new build state atomically (write-to-temp-then-
// rename, spec §6). Failure here is an IoError and does not fail the task
// (spec §7): the caller downgrades a Success to SuccessWithWarning instead.
func writeState(workDir, scriptName, command string, files changeanalyzer.FileHashMap) error {
	path := stateFilePath(workDir, scriptName)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.IoError{Path: path, Cause: err}
	}

	fileMap := make(map[string]string, len(files.Files))
	for _, f := range files.Files {
		fileMap[f.Path] = f.Hash
	}

	b, err := json.MarshalIndent(projectBuildState{Files: fileMap, Arguments: command}, "", "  ")
	if err != nil {
		return errors.IoError{Path: path, Cause: err}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.IoError{Path: path, Cause: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.IoError{Path: path, Cause: err}
	}

	return nil
}

// deleteState removes the prior state file so an interrupted rebuild never
// leaves a stale "success" record behind (spec §4.F step 7). A missing file
// is not an error.
func deleteState(workDir, scriptName string) {
	os.Remove(stateFilePath(workDir, scriptName)) //nolint:errcheck
}

// matchesPriorState implements spec §4.F step 6: exact equality of command
// string and file-hash map against the prior recorded state.
func matchesPriorState(prior projectBuildState, ok bool, command string, current changeanalyzer.FileHashMap) bool {
	if !ok {
		return false
	}

	if prior.Arguments != command {
		return false
	}

	if len(prior.Files) != current.Len() {
		return false
	}

	for _, f := range current.Files {
		if prior.Files[f.Path] != f.Hash {
			return false
		}
	}

	return true
}
