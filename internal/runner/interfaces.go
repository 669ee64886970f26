package runner

import (
	"context"

	"github.com/fleetbuild/fleet/internal/buildcache"
	"github.com/fleetbuild/fleet/internal/changeanalyzer"
	"github.com/fleetbuild/fleet/internal/collator"
)

// The four capability interfaces from spec §9's re-architecture note:
// "re-architect [the dynamic event-hook framework] as a set of explicit
// capability interfaces supplied at construction (builder pattern):
// ChangeAnalyzer, BuildCache, ShellRunner, OutputSink." The runner exposes
// no plugin registry; New takes concrete implementations of these.

// ChangeAnalyzer is satisfied by changeanalyzer.Analyzer.
type ChangeAnalyzer = changeanalyzer.Analyzer

// BuildCache is satisfied by buildcache.Cache.
type BuildCache = buildcache.Cache

// OutputSink is satisfied by *collator.Collator.
type OutputSink interface {
	Writer(taskName string) *collator.TaskWriter
	Transcript(taskName string) string
}

// ShellRunner spawns a project's command as a child process in workDir,
// with binDir prepended to PATH, streaming stdout/stderr chunk-wise into
// the given callback. It returns the process's exit code (or a non-process
// error if the command could not even be started).
type ShellRunner interface {
	Run(ctx context.Context, workDir, binDir, command string, onChunk func(stream collator.Stream, chunk []byte)) (exitCode int, err error)
}
