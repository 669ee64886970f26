// Command fleet runs a named script across a monorepo's projects in
// dependency order, with incremental skip and build-cache support
// (spec §6 "External Interfaces").
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/fleetbuild/fleet/internal/buildcache"
	"github.com/fleetbuild/fleet/internal/changeanalyzer"
	"github.com/fleetbuild/fleet/internal/collator"
	"github.com/fleetbuild/fleet/internal/component"
	"github.com/fleetbuild/fleet/internal/config"
	fleeterrors "github.com/fleetbuild/fleet/internal/errors"
	"github.com/fleetbuild/fleet/internal/graph"
	"github.com/fleetbuild/fleet/internal/report"
	"github.com/fleetbuild/fleet/internal/runner"
	"github.com/fleetbuild/fleet/internal/tasks"
	"github.com/fleetbuild/fleet/internal/telemetry"
	"github.com/fleetbuild/fleet/pkg/log"
)

func main() {
	app := newApp()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "fleet",
		Usage: "run a script across a monorepo's projects in dependency order",
		Commands: []*cli.Command{
			runCommand(),
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute <script> for every selected project",
		ArgsUsage: "<script>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "to", Usage: "restrict to these projects and their upstream dependencies"},
			&cli.StringSliceFlag{Name: "from", Usage: "restrict to these projects and their downstream dependents"},
			&cli.StringFlag{Name: "parallel", Value: "max", Usage: `positive integer, or "max" for hardware thread count`},
			&cli.BoolFlag{Name: "quiet", Usage: "suppress stdout on the human-facing stream"},
			&cli.BoolFlag{Name: "changed-only", Usage: "restrict rebuild to projects with local changes"},
			&cli.BoolFlag{Name: "allow-warnings", Usage: "a task that wrote to stderr still counts as success"},
			&cli.BoolFlag{Name: "no-incremental", Usage: "force every task to execute"},
			&cli.BoolFlag{Name: "no-dependency-order", Usage: "drop edges; every selected project runs independently"},
			&cli.BoolFlag{Name: "no-cache", Usage: "disable the build cache"},
			&cli.BoolFlag{Name: "fail-fast", Usage: "stop launching new tasks after the first failure"},
			&cli.StringFlag{Name: "repo-root", Value: ".", Usage: "repository root containing fleet.yml"},
			&cli.StringSliceFlag{Name: "ignore-warning", Usage: "stderr substrings that do not count as a warning"},
			&cli.BoolFlag{Name: "telemetry", Usage: "export span data to the console"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("fleet run requires exactly one script name argument", 1)
	}

	script := c.Args().First()

	repoRoot, err := filepath.Abs(c.String("repo-root"))
	if err != nil {
		return fleeterrors.ConfigError{Message: err.Error()}
	}

	logger := log.New(os.Stderr, "info", !isatty.IsTerminal(os.Stderr.Fd()))

	ctx := context.Background()

	if err := telemetry.Init(ctx, telemetry.Options{Enabled: c.Bool("telemetry"), AppName: "fleet", AppVersion: "dev"}); err != nil {
		logger.Warnf("telemetry init failed: %v", err)
	}
	defer telemetry.Shutdown(ctx) //nolint:errcheck

	projects, err := config.Load(repoRoot)
	if err != nil {
		return err
	}

	g, err := graph.Build(projects)
	if err != nil {
		return err
	}

	selected, err := g.Select(c.StringSlice("to"), c.StringSlice("from"))
	if err != nil {
		return err
	}

	noDepOrder := c.Bool("no-dependency-order")

	collection, err := tasks.BuildFromProjects(selected, script, noDepOrder, func(p *component.Project) (string, string, string) {
		return p.Dir, filepath.Join(p.Dir, "node_modules", ".bin"), script
	})
	if err != nil {
		return err
	}

	analyzer, analyzerErr := changeanalyzer.NewGitAnalyzer(repoRoot)
	if analyzerErr != nil {
		logger.Warnf("change analyzer unavailable: %v", analyzerErr)
	}

	cacheEnabled := !c.Bool("no-cache")

	var cache buildcache.Cache
	if cacheEnabled {
		cache, err = buildcache.NewLocalCache(filepath.Join(repoRoot, ".fleet", "cache"), false)
		if err != nil {
			return err
		}
	}

	sink := collator.New(os.Stdout, c.Bool("quiet"))

	cfg := runner.Config{
		Parallelism:            parseParallelism(c.String("parallel")),
		Quiet:                  c.Bool("quiet"),
		ChangedProjectsOnly:    c.Bool("changed-only"),
		AllowWarningsInSuccess: c.Bool("allow-warnings"),
		Incremental:            !c.Bool("no-incremental"),
		CacheEnabled:           cacheEnabled,
		FailFast:               c.Bool("fail-fast"),
		IgnoredWarningPatterns: c.StringSlice("ignore-warning"),
	}

	r := runner.New(cfg, collection, selected.ByName(), script, analyzer, cache, runner.DefaultShellRunner{}, sink, logger)

	rep, runErr := r.Execute(ctx)
	if rep != nil {
		report.WriteSummary(os.Stdout, rep.Results()) //nolint:errcheck
	}

	if runErr != nil {
		return fleeterrors.AlreadyReportedError{Cause: runErr}
	}

	return nil
}

func parseParallelism(value string) int {
	if value == "max" || value == "" {
		return runtime.NumCPU()
	}

	n := 0
	for _, r := range value {
		if r < '0' || r > '9' {
			return runtime.NumCPU()
		}

		n = n*10 + int(r-'0')
	}

	if n <= 0 {
		return runtime.NumCPU()
	}

	return n
}
