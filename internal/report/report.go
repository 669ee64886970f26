// Package report renders a finished run's per-task results (spec §6:
// "duration and per-task result are reported to a telemetry sink if
// configured" — this is the human-facing counterpart) as a CSV dump or a
// colorized terminal summary, grounded on the teacher's report package
// contract (NewReport/AddRun/EndRun/Summarize/WriteCSV/WriteSummary),
// adapted here to consume runner.TaskResult directly rather than keeping a
// parallel Run bookkeeping structure.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/fleetbuild/fleet/internal/runner"
	"github.com/fleetbuild/fleet/internal/tasks"
)

// Summary aggregates a run's results by terminal status.
type Summary struct {
	TotalUnits     int
	TotalDuration  time.Duration
	Succeeded      int
	SucceededWarn  int
	Skipped        int
	FromCache      int
	Failed         int
	Blocked        int
}

// Summarize aggregates results by terminal status.
func Summarize(results []runner.TaskResult) Summary {
	var s Summary

	for _, res := range results {
		s.TotalUnits++
		s.TotalDuration += res.Duration

		switch res.Status {
		case tasks.Success:
			s.Succeeded++
		case tasks.SuccessWithWarning:
			s.SucceededWarn++
		case tasks.Skipped:
			s.Skipped++
		case tasks.FromCache:
			s.FromCache++
		case tasks.Failure:
			s.Failed++
		case tasks.Blocked:
			s.Blocked++
		}
	}

	return s
}

// WriteCSV writes one row per task: name, status, duration, error (if any).
func WriteCSV(w io.Writer, results []runner.TaskResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Name", "Status", "Duration", "Error"}); err != nil {
		return err
	}

	for _, res := range results {
		errMsg := ""
		if res.Err != nil {
			errMsg = res.Err.Error()
		}

		if err := cw.Write([]string{res.Name, res.Status.String(), res.Duration.String(), errMsg}); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// statusColor picks the glyph color for a task's terminal status: green for
// anything success-like, yellow for a warning-flavored success, red for
// failure/blocked.
func statusColor(s tasks.Status) *color.Color {
	switch s {
	case tasks.Success, tasks.Skipped, tasks.FromCache:
		return color.New(color.FgGreen)
	case tasks.SuccessWithWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// WriteSummary writes a banner, one colorized line per task, and an
// aggregate summary matching the shape of the teacher's report package
// ("❯❯ Run Summary" / "Total Units" / "Total Duration" / per-status counts).
func WriteSummary(w io.Writer, results []runner.TaskResult) error {
	fmt.Fprintln(w, "\n❯❯ Run Summary")

	for _, res := range results {
		c := statusColor(res.Status)
		c.Fprintf(w, "%-24s %-20s %s\n", res.Name, res.Status.String(), res.Duration.Round(time.Millisecond))
	}

	summary := Summarize(results)

	fmt.Fprintf(w, "Total Units: %d\n", summary.TotalUnits)
	fmt.Fprintf(w, "Total Duration: %s\n", summary.TotalDuration.Round(time.Millisecond))

	if summary.Succeeded > 0 {
		fmt.Fprintf(w, "Units Succeeded: %d\n", summary.Succeeded)
	}

	if summary.SucceededWarn > 0 {
		fmt.Fprintf(w, "Units Succeeded With Warnings: %d\n", summary.SucceededWarn)
	}

	if summary.Skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d\n", summary.Skipped)
	}

	if summary.FromCache > 0 {
		fmt.Fprintf(w, "Restored From Cache: %d\n", summary.FromCache)
	}

	if summary.Failed > 0 {
		fmt.Fprintf(w, "Failed: %d\n", summary.Failed)
	}

	if summary.Blocked > 0 {
		fmt.Fprintf(w, "Blocked: %d\n", summary.Blocked)
	}

	return nil
}
