package warehouse

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
	"github.com/pathwise/funnel-cli/internal/resilience"
	"github.com/pathwise/funnel-cli/internal/sqlgen"
)

// Executor runs funnel plans through the Postgres renderer. It satisfies
// plan.Executor.
type Executor struct {
	pool Pool
}

// NewExecutor creates an Executor. Returns nil if pool is nil.
func NewExecutor(pool Pool) *Executor {
	if pool == nil {
		return nil
	}
	return &Executor{pool: pool}
}

// Execute renders and runs the plan, returning one count per step.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) (funnel.FunnelResult, error) {
	if p.Segmented() {
		return funnel.FunnelResult{}, eris.Wrap(funnel.ErrValidation,
			"warehouse: segmented plan passed to Execute")
	}

	q, err := sqlgen.Postgres(p)
	if err != nil {
		return funnel.FunnelResult{}, err
	}

	rows, err := e.query(ctx, q)
	if err != nil {
		return funnel.FunnelResult{}, eris.Wrap(err, "warehouse: run funnel query")
	}
	defer rows.Close()

	var res funnel.FunnelResult
	for rows.Next() {
		var sc funnel.StepCount
		if err := rows.Scan(&sc.StepIndex, &sc.StepLabel, &sc.UserCount); err != nil {
			return funnel.FunnelResult{}, eris.Wrap(err, "warehouse: scan step row")
		}
		res.Rows = append(res.Rows, sc)
	}
	if err := rows.Err(); err != nil {
		return funnel.FunnelResult{}, eris.Wrap(err, "warehouse: read step rows")
	}

	res = p.Align(res)
	zap.L().Debug("warehouse: funnel executed",
		zap.String("table", p.Table),
		zap.Int("steps", len(res.Rows)),
	)
	return res, nil
}

// ExecuteSegmented runs a segmented plan and splits rows by segment value.
func (e *Executor) ExecuteSegmented(ctx context.Context, p *plan.Plan) (funnel.SegmentedResult, error) {
	if !p.Segmented() {
		return nil, eris.Wrap(funnel.ErrValidation,
			"warehouse: plan has no segment column")
	}

	q, err := sqlgen.Postgres(p)
	if err != nil {
		return nil, err
	}

	rows, err := e.query(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: run segmented funnel query")
	}
	defer rows.Close()

	out := funnel.SegmentedResult{}
	for rows.Next() {
		var sc funnel.StepCount
		var seg string
		if err := rows.Scan(&sc.StepIndex, &sc.StepLabel, &seg, &sc.UserCount); err != nil {
			return nil, eris.Wrap(err, "warehouse: scan segment row")
		}
		r := out[seg]
		r.Rows = append(r.Rows, sc)
		out[seg] = r
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "warehouse: read segment rows")
	}

	// A cohort with zero users at a step has no grouped row for it.
	for seg, r := range out {
		out[seg] = p.Align(r)
	}

	zap.L().Debug("warehouse: segmented funnel executed",
		zap.String("table", p.Table),
		zap.String("segment", p.Segment),
		zap.Int("cohorts", len(out)),
	)
	return out, nil
}

// query submits the rendered statement, resubmitting on transient
// connection failures.
func (e *Executor) query(ctx context.Context, q *sqlgen.Query) (pgx.Rows, error) {
	cfg := retryConfig()
	cfg.OnRetry = resilience.Logger("warehouse query")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (pgx.Rows, error) {
		return e.pool.Query(ctx, q.SQL, q.Args...)
	})
}

// DryRun is unsupported: Postgres has no bytes-scanned estimator, and a
// made-up figure must not stand in for a real one.
func (e *Executor) DryRun(_ context.Context, _ *plan.Plan) (plan.CostEstimate, error) {
	return plan.CostEstimate{}, eris.Wrap(funnel.ErrConfiguration,
		"warehouse: dry-run cost estimation requires BigQuery")
}
