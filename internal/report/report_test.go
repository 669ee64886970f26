package report_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbuild/fleet/internal/report"
	"github.com/fleetbuild/fleet/internal/runner"
	"github.com/fleetbuild/fleet/internal/tasks"
)

func sampleResults() []runner.TaskResult {
	return []runner.TaskResult{
		{Name: "A", Status: tasks.Success, Duration: 2 * time.Second},
		{Name: "B", Status: tasks.SuccessWithWarning, Duration: time.Second},
		{Name: "C", Status: tasks.Skipped},
		{Name: "D", Status: tasks.FromCache},
		{Name: "E", Status: tasks.Failure, Duration: 500 * time.Millisecond},
		{Name: "F", Status: tasks.Blocked},
	}
}

func TestSummarizeCountsEveryStatus(t *testing.T) {
	t.Parallel()

	summary := report.Summarize(sampleResults())

	assert.Equal(t, 6, summary.TotalUnits)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.SucceededWarn)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.FromCache)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Blocked)
}

func TestWriteCSVContainsEveryRow(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	require.NoError(t, report.WriteCSV(&buf, sampleResults()))

	out := buf.String()
	assert.Contains(t, out, "Name,Status,Duration,Error")
	assert.Contains(t, out, "A,Success")
	assert.Contains(t, out, "E,Failure")
}

func TestWriteSummaryIncludesBannerAndCounts(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	require.NoError(t, report.WriteSummary(&buf, sampleResults()))

	out := buf.String()
	assert.Contains(t, out, "Run Summary")
	assert.Contains(t, out, "Total Units: 6")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Blocked: 1")
}
