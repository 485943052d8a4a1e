package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"filingcli/internal/config"
	"filingcli/internal/infrastructure"
	"filingcli/internal/workbook"
)

// Job names one workbook to consolidate.
type Job struct {
	Source      string
	Destination string
}

// Result pairs a job with its report or failure. One bad workbook never
// aborts the batch; inspect Err per result.
type Result struct {
	Job
	Report *workbook.Report
	Err    error
}

// Runner processes workbooks concurrently, bounded by the configured worker
// count. Each workbook is independent; there is no shared state between jobs
// beyond the metrics.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *Metrics
}

// NewRunner builds a batch runner. reg may be nil to use the default
// prometheus registerer.
func NewRunner(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger, metrics: NewMetrics(reg)}
}

// Run executes all jobs and returns one result per job, in job order. Every
// job gets its own run ID, carried through the logs via context.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(r.cfg.Batch.Workers)
	for i, job := range jobs {
		grp.Go(func() error {
			results[i] = r.runOne(ctx, job)
			return nil
		})
	}
	grp.Wait()

	return results
}

func (r *Runner) runOne(ctx context.Context, job Job) (res Result) {
	res.Job = job
	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(ctx, runID)

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic processing %s: %v", job.Source, p)
		}
		if res.Err != nil {
			r.metrics.WorkbookFailures.Inc()
			r.logger.ErrorContext(ctx, "workbook failed",
				slog.String("source", job.Source),
				slog.String("error", res.Err.Error()))
			return
		}
		r.metrics.WorkbooksProcessed.Inc()
		r.record(res.Report)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	r.logger.InfoContext(ctx, "processing workbook",
		slog.String("source", job.Source),
		slog.String("destination", job.Destination))

	o := workbook.New(r.cfg, r.logger)
	res.Report, res.Err = o.Process(ctx, job.Source, job.Destination)
	return res
}

func (r *Runner) record(rep *workbook.Report) {
	if rep == nil {
		return
	}
	for _, s := range rep.Sheets {
		r.metrics.Merges.WithLabelValues("horizontal").Add(float64(s.HorizontalMerges))
		r.metrics.Merges.WithLabelValues("vertical").Add(float64(s.VerticalMerges))
		r.metrics.Splits.Add(float64(s.SplitSheets))
	}
}

// Failures counts results that carry an error.
func Failures(results []Result) int {
	n := 0
	for _, res := range results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
