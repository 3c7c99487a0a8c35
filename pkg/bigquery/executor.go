package bigquery

import (
	"context"

	bq "cloud.google.com/go/bigquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/pathwise/funnel-cli/internal/cost"
	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
	"github.com/pathwise/funnel-cli/internal/resilience"
	"github.com/pathwise/funnel-cli/internal/sqlgen"
)

// Executor runs funnel plans as BigQuery jobs. It satisfies plan.Executor.
type Executor struct {
	client *bq.Client
	rates  cost.Rates
}

// NewExecutor creates an Executor. Returns nil if client is nil.
func NewExecutor(client *bq.Client, rates cost.Rates) *Executor {
	if client == nil {
		return nil
	}
	return &Executor{client: client, rates: rates}
}

type stepRow struct {
	StepIndex int64  `bigquery:"step_index"`
	StepLabel string `bigquery:"step_label"`
	UserCount int64  `bigquery:"user_count"`
}

type segmentRow struct {
	StepIndex int64  `bigquery:"step_index"`
	StepLabel string `bigquery:"step_label"`
	Segment   string `bigquery:"segment"`
	UserCount int64  `bigquery:"user_count"`
}

type armRow struct {
	StepIndex int64  `bigquery:"step_index"`
	StepLabel string `bigquery:"step_label"`
	Arm       string `bigquery:"arm"`
	UserCount int64  `bigquery:"user_count"`
}

// Execute renders and runs the plan, returning one count per step.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) (funnel.FunnelResult, error) {
	if p.Segmented() {
		return funnel.FunnelResult{}, eris.Wrap(funnel.ErrValidation,
			"bigquery: segmented plan passed to Execute")
	}

	sql, err := sqlgen.BigQuery(p)
	if err != nil {
		return funnel.FunnelResult{}, err
	}

	it, err := submit(ctx, e.client.Query(sql), "funnel query")
	if err != nil {
		return funnel.FunnelResult{}, eris.Wrap(err, "bigquery: run funnel query")
	}

	var res funnel.FunnelResult
	for {
		var r stepRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return funnel.FunnelResult{}, eris.Wrap(err, "bigquery: read funnel rows")
		}
		res.Rows = append(res.Rows, funnel.StepCount{
			StepIndex: int(r.StepIndex),
			StepLabel: r.StepLabel,
			UserCount: r.UserCount,
		})
	}

	res = p.Align(res)
	zap.L().Debug("bigquery: funnel executed",
		zap.String("table", p.Table),
		zap.Int("steps", len(res.Rows)),
	)
	return res, nil
}

// ExecuteSegmented runs a segmented plan and splits rows by cohort. Plans
// carrying arm assignment split by arm instead of segment value.
func (e *Executor) ExecuteSegmented(ctx context.Context, p *plan.Plan) (funnel.SegmentedResult, error) {
	if !p.Segmented() {
		return nil, eris.Wrap(funnel.ErrValidation, "bigquery: plan has no segment column")
	}

	sql, err := sqlgen.BigQuery(p)
	if err != nil {
		return nil, err
	}

	it, err := submit(ctx, e.client.Query(sql), "segmented funnel query")
	if err != nil {
		return nil, eris.Wrap(err, "bigquery: run segmented funnel query")
	}

	out := funnel.SegmentedResult{}
	for {
		var key string
		var sc funnel.StepCount

		if p.Arms != nil {
			var r armRow
			err = it.Next(&r)
			key = r.Arm
			sc = funnel.StepCount{StepIndex: int(r.StepIndex), StepLabel: r.StepLabel, UserCount: r.UserCount}
		} else {
			var r segmentRow
			err = it.Next(&r)
			key = r.Segment
			sc = funnel.StepCount{StepIndex: int(r.StepIndex), StepLabel: r.StepLabel, UserCount: r.UserCount}
		}
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "bigquery: read segment rows")
		}

		r := out[key]
		r.Rows = append(r.Rows, sc)
		out[key] = r
	}

	// A cohort with zero users at a step has no grouped row for it.
	for key, r := range out {
		out[key] = p.Align(r)
	}

	zap.L().Debug("bigquery: segmented funnel executed",
		zap.String("table", p.Table),
		zap.Int("cohorts", len(out)),
	)
	return out, nil
}

// DryRun validates the rendered plan and prices its scan without running
// it.
func (e *Executor) DryRun(ctx context.Context, p *plan.Plan) (plan.CostEstimate, error) {
	sql, err := sqlgen.BigQuery(p)
	if err != nil {
		return plan.CostEstimate{}, err
	}
	return dryRun(ctx, e.client, sql, nil, e.rates)
}

// dryRun submits a dry-run job and converts the scan estimate to money.
func dryRun(ctx context.Context, client *bq.Client, sql string, params []bq.QueryParameter, rates cost.Rates) (plan.CostEstimate, error) {
	q := client.Query(sql)
	q.DryRun = true
	q.Parameters = params

	retry := resilience.DefaultConfig()
	retry.OnRetry = resilience.Logger("dry run")
	job, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*bq.Job, error) {
		return q.Run(ctx)
	})
	if err != nil {
		return plan.CostEstimate{}, eris.Wrap(err, "bigquery: dry run")
	}
	status := job.LastStatus()
	if status == nil || status.Statistics == nil {
		return plan.CostEstimate{}, eris.New("bigquery: dry run returned no statistics")
	}

	bytes := status.Statistics.TotalBytesProcessed
	est := plan.CostEstimate{
		BytesProcessed: bytes,
		USD:            cost.NewCalculator(rates).BigQueryScan(bytes),
	}
	zap.L().Debug("bigquery: dry run priced",
		zap.Int64("bytes_processed", est.BytesProcessed),
		zap.Float64("usd", est.USD),
	)
	return est, nil
}
