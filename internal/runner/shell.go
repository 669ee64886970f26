package runner

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/google/shlex"

	"github.com/fleetbuild/fleet/internal/collator"
)

// DefaultShellRunner executes a task's command string through the
// operating system's default shell (spec §6): /bin/sh -c on POSIX, cmd /C
// on Windows.
type DefaultShellRunner struct{}

// Run spawns command in workDir with binDir prepended to PATH, streaming
// stdout/stderr chunk-wise to onChunk. Context cancellation kills the child
// process best-effort (spec §4.F "External cancellation").
func (DefaultShellRunner) Run(ctx context.Context, workDir, binDir, command string, onChunk func(stream collator.Stream, chunk []byte)) (int, error) {
	if strings.TrimSpace(command) == "" {
		return 0, nil
	}

	cmd := shellCommand(ctx, command)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "PATH="+binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	cmd.Stdout = &chunkWriter{stream: collator.Stdout, onChunk: onChunk}
	cmd.Stderr = &chunkWriter{stream: collator.Stderr, onChunk: onChunk}

	// The command is tokenized with shlex but the result is discarded;
	// execution always goes through the default shell per spec §6, shlex
	// never drives the actual exec.Command.
	_, _ = shlex.Split(command)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}

	return -1, err
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", normalizeWindowsHead(command))
	}

	return exec.CommandContext(ctx, "/bin/sh", "-c", command)
}

// normalizeWindowsHead converts path separators in the command's leading
// token only (spec §6: "path separator conversion for Windows-style path
// segments at the head of the command only"), since scripts are often
// authored with POSIX-style relative paths (./bin/tool) that cmd.exe
// resolves as relative paths with backslashes.
func normalizeWindowsHead(command string) string {
	fields := strings.SplitN(command, " ", 2)
	if len(fields) == 0 {
		return command
	}

	head := strings.ReplaceAll(fields[0], "/", `\`)

	if len(fields) == 1 {
		return head
	}

	return head + " " + fields[1]
}

type chunkWriter struct {
	stream  collator.Stream
	onChunk func(stream collator.Stream, chunk []byte)
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.onChunk != nil {
		w.onChunk(w.stream, p)
	}

	return len(p), nil
}
