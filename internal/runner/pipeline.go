package runner

import (
	"bytes"
	"context"
	"strings"

	"github.com/fleetbuild/fleet/internal/buildcache"
	"github.com/fleetbuild/fleet/internal/changeanalyzer"
	"github.com/fleetbuild/fleet/internal/collator"
	"github.com/fleetbuild/fleet/internal/component"
	"github.com/fleetbuild/fleet/internal/errors"
	"github.com/fleetbuild/fleet/internal/tasks"
)

// stderrTailLimit bounds how much of a failed command's stderr is retained
// for the CommandFailure message (spec §7).
const stderrTailLimit = 4 * 1024

// outcome is the result of running one task's pipeline: its terminal status
// and, for Failure, the error to surface.
type outcome struct {
	status tasks.Status
	err    error
}

// runPipeline implements spec §4.F's ten-step per-task execution pipeline.
func (r *Runner) runPipeline(ctx context.Context, t *tasks.Task, project *component.Project) outcome {
	writer := r.sink.Writer(t.Name) // step 1
	defer writer.Close()            // step 10

	if t.Builder.Command == "" {
		// A no-op task still gets a state file written, matching spec §4.F's
		// tie-break rule ("write state, terminal Success, no child process").
		if err := writeState(t.Builder.WorkDir, r.scriptName, "", changeanalyzer.FileHashMap{}); err != nil {
			r.log.Warnf("state write failed for %q: %v", t.Name, err)
		}

		return outcome{status: tasks.Success}
	}

	prior, priorOK := readState(t.Builder.WorkDir, r.scriptName) // step 2

	current, analyzerErr := r.analyzeOrDegrade(ctx, project) // step 3
	uncacheable := analyzerErr != nil

	fingerprint := buildcache.Fingerprint(t.Builder.Command, current, t.Builder.ConfigTag) // step 4

	if r.cfg.CacheEnabled && !uncacheable {
		result, err := r.cache.TryRestore(ctx, fingerprint, t.Builder.WorkDir) // step 5
		if err != nil {
			r.log.Warnf("cache restore failed for %q: %v", t.Name, err)
		}

		if result == buildcache.Restored {
			if err := writeState(t.Builder.WorkDir, r.scriptName, t.Builder.Command, current); err != nil {
				r.log.Warnf("state write failed for %q: %v", t.Name, err)
			}

			return outcome{status: tasks.FromCache}
		}
	}

	if r.cfg.Incremental && !r.cfg.ChangedProjectsOnly && !uncacheable {
		// Normally a task downstream of a dependency that actually ran (or
		// was restored from cache) must re-run, even if its own hashes match.
		upstreamRebuilt := false
		for _, dep := range r.collection.Dependencies(t) {
			if dep.Status() != tasks.Skipped && dep.Builder.Command != "" {
				upstreamRebuilt = true
			}
		}

		if !upstreamRebuilt && matchesPriorState(prior, priorOK, t.Builder.Command, current) { // step 6
			return outcome{status: tasks.Skipped}
		}
	}

	if r.cfg.Incremental && r.cfg.ChangedProjectsOnly && !uncacheable {
		// spec §4.F tie-break: under changed-projects-only, a task whose own
		// hashes match the prior state skips even if an upstream dependency
		// just rebuilt.
		if matchesPriorState(prior, priorOK, t.Builder.Command, current) {
			return outcome{status: tasks.Skipped}
		}
	}

	deleteState(t.Builder.WorkDir, r.scriptName) // step 7

	var stderrBuf bytes.Buffer
	sawWarningStderr := false

	exitCode, runErr := r.shell.Run(ctx, t.Builder.WorkDir, t.Builder.BinDir, t.Builder.Command, func(stream collator.Stream, chunk []byte) {
		writer.Write(stream, chunk) //nolint:errcheck

		if stream == collator.Stderr {
			stderrBuf.Write(chunk)

			if !r.stderrIsIgnored(chunk) {
				sawWarningStderr = true
			}
		}
	})

	if runErr != nil {
		return outcome{status: tasks.Failure, err: errors.CommandFailure{
			Project:    t.Name,
			ExitCode:   -1,
			StderrTail: tail(stderrBuf.String(), stderrTailLimit),
		}}
	}

	if exitCode != 0 { // step 8
		return outcome{status: tasks.Failure, err: errors.CommandFailure{
			Project:    t.Name,
			ExitCode:   exitCode,
			StderrTail: tail(stderrBuf.String(), stderrTailLimit),
		}}
	}

	status := tasks.Success
	if sawWarningStderr {
		status = tasks.SuccessWithWarning
	}

	if err := writeState(t.Builder.WorkDir, r.scriptName, t.Builder.Command, current); err != nil { // step 9
		r.log.Warnf("state write failed for %q: %v", t.Name, err)
		status = tasks.SuccessWithWarning
	}

	if r.cfg.CacheEnabled && !uncacheable {
		if _, err := r.cache.TryStore(ctx, fingerprint, t.Builder.WorkDir, true); err != nil {
			r.log.Warnf("cache store failed for %q: %v", t.Name, err)
			status = tasks.SuccessWithWarning
		}
	}

	return outcome{status: status}
}

func (r *Runner) analyzeOrDegrade(ctx context.Context, project *component.Project) (changeanalyzer.FileHashMap, error) {
	if r.analyzer == nil {
		return changeanalyzer.FileHashMap{}, errors.AnalyzerUnavailable{Project: project.Name, Reason: "no analyzer configured"}
	}

	deps, err := r.analyzer.GetPackageDeps(ctx, project)
	if err != nil {
		r.log.Warnf("change analyzer unavailable for %q: %v", project.Name, err)

		return changeanalyzer.FileHashMap{}, err
	}

	return deps, nil
}

// stderrIsIgnored reports whether chunk, in its entirety, only contains
// substrings matched by the configured ignore patterns (SPEC_FULL §5
// supplement: IgnoredWarningPatterns resolves the spec's open question on
// warning-detection heuristics).
func (r *Runner) stderrIsIgnored(chunk []byte) bool {
	if len(r.cfg.IgnoredWarningPatterns) == 0 {
		return false
	}

	text := string(chunk)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		matched := false

		for _, pattern := range r.cfg.IgnoredWarningPatterns {
			if strings.Contains(line, pattern) {
				matched = true
				break
			}
		}

		if !matched {
			return false
		}
	}

	return true
}

func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[len(s)-limit:]
}
