package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"filingcli/internal/config"
	"filingcli/internal/workbook"
)

func fixtureWorkbook(t *testing.T, dir, name string) string {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), "T1"))
	rows := [][]string{
		{"Back to Index"},
		{"Category:", "Banking"},
		{"Line Items:", "Revenue | Profit"},
		{"Header L3:", "Periods"},
		{"Periods:", "At June 30, 2024"},
		{"Table Title:", "Deposits"},
		{"Source(s):", "10-Q p.12"},
		{"", "At June 30, 2024"},
		{"Revenue", "100"},
		{"Profit", "40"},
	}
	for r, row := range rows {
		for c, val := range row {
			if val == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("T1", cell, val))
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestRunProcessesAllJobs(t *testing.T) {
	dir := t.TempDir()
	var jobs []Job
	for i := 0; i < 3; i++ {
		src := fixtureWorkbook(t, dir, fmt.Sprintf("in_%d.xlsx", i))
		jobs = append(jobs, Job{Source: src, Destination: filepath.Join(dir, fmt.Sprintf("out_%d.xlsx", i))})
	}

	cfg := config.Default()
	cfg.Batch.Workers = 2
	reg := prometheus.NewRegistry()
	r := NewRunner(cfg, nil, reg)

	results := r.Run(context.Background(), jobs)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, jobs[i], res.Job)
		require.NoError(t, res.Err)
		require.NotNil(t, res.Report)
		assert.Equal(t, workbook.StatusValid, res.Report.Status())
		_, err := os.Stat(res.Destination)
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, Failures(results))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.metrics.WorkbooksProcessed))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.metrics.WorkbookFailures))
}

func TestRunRecordsFailuresWithoutAbortingBatch(t *testing.T) {
	dir := t.TempDir()
	good := fixtureWorkbook(t, dir, "good.xlsx")
	jobs := []Job{
		{Source: filepath.Join(dir, "missing.xlsx"), Destination: filepath.Join(dir, "bad_out.xlsx")},
		{Source: good, Destination: filepath.Join(dir, "good_out.xlsx")},
	}

	r := NewRunner(config.Default(), nil, prometheus.NewRegistry())
	results := r.Run(context.Background(), jobs)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, 1, Failures(results))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.WorkbookFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.WorkbooksProcessed))
}

func TestRunHonorsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	src := fixtureWorkbook(t, dir, "in.xlsx")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(config.Default(), nil, prometheus.NewRegistry())
	results := r.Run(ctx, []Job{{Source: src, Destination: filepath.Join(dir, "out.xlsx")}})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
