package bigquery

import (
	"context"
	"fmt"
	"strings"

	bq "cloud.google.com/go/bigquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
)

// FunnelByArm computes the funnel per experiment arm plus the overall
// population. The arm-joined query and the overall query run as
// concurrent jobs. Arms the assignment table never produced come back as
// all-zero funnels, so downstream significance testing reports the sample
// as insufficient instead of missing.
func (e *Executor) FunnelByArm(ctx context.Context, p *plan.Plan, cfg funnel.ABTestConfig) (funnel.ArmResults, error) {
	armed, err := p.WithArms(cfg)
	if err != nil {
		return funnel.ArmResults{}, err
	}

	var out funnel.ArmResults
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		split, err := e.ExecuteSegmented(ctx, armed)
		if err != nil {
			return err
		}
		out.Control = armed.Align(split["control"])
		out.Test = armed.Align(split["test"])
		return nil
	})
	g.Go(func() error {
		overall, err := e.Execute(ctx, p)
		if err != nil {
			return err
		}
		out.Overall = overall
		return nil
	})

	if err := g.Wait(); err != nil {
		return funnel.ArmResults{}, err
	}

	zap.L().Info("bigquery: ab funnel executed",
		zap.String("test_code", cfg.TestCode),
		zap.Int64("control_entered", firstCount(out.Control)),
		zap.Int64("test_entered", firstCount(out.Test)),
	)
	return out, nil
}

func firstCount(r funnel.FunnelResult) int64 {
	if len(r.Rows) == 0 {
		return 0
	}
	return r.Rows[0].UserCount
}

// ArmAssignment is one user's experiment membership.
type ArmAssignment struct {
	UserID string `bigquery:"user_id"`
	Arm    string `bigquery:"arm"`
}

// ResolveArms returns each user's arm for the test code over the date
// range: control, test, or unassigned. A user observed in both arms is
// unassigned.
func (e *Executor) ResolveArms(ctx context.Context, cfg funnel.ABTestConfig, dates funnel.DateRange) ([]ArmAssignment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := dates.Validate(); err != nil {
		return nil, err
	}

	sql, err := armResolutionSQL(cfg)
	if err != nil {
		return nil, err
	}

	q := e.client.Query(sql)
	q.Parameters = []bq.QueryParameter{
		{Name: "test_code", Value: cfg.TestCode},
		{Name: "start_date", Value: dates.Start},
		{Name: "end_date", Value: dates.End},
	}

	it, err := submit(ctx, q, "arm resolution")
	if err != nil {
		return nil, eris.Wrap(err, "bigquery: resolve arms")
	}

	var out []ArmAssignment
	for {
		var a ArmAssignment
		err := it.Next(&a)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "bigquery: read arm assignments")
		}
		out = append(out, a)
	}
	return out, nil
}

// armResolutionSQL renders the assignment query. The session table and
// user column are identifiers and cannot bind as parameters, so they are
// validated and inlined; everything else binds.
func armResolutionSQL(cfg funnel.ABTestConfig) (string, error) {
	if strings.ContainsAny(cfg.Table, "`'\" ;") {
		return "", eris.Wrapf(funnel.ErrValidation, "bigquery: unsafe assignment table %q", cfg.Table)
	}
	if strings.ContainsAny(cfg.UserIDColumn, "`'\" ;.") {
		return "", eris.Wrapf(funnel.ErrValidation, "bigquery: unsafe user id column %q", cfg.UserIDColumn)
	}

	return fmt.Sprintf(`WITH arm_sessions AS (
  SELECT %s AS user_id,
    CASE
      WHEN GroupCode LIKE '%%-A%%' THEN 'control'
      WHEN GroupCode LIKE '%%-B%%' THEN 'test'
      ELSE 'unassigned'
    END AS arm
  FROM `+"`%s`"+`
  WHERE GroupCode LIKE CONCAT(@test_code, '-%%')
    AND DATE(date) BETWEEN @start_date AND @end_date
)
SELECT user_id,
  CASE WHEN COUNT(DISTINCT arm) = 1 THEN MIN(arm) ELSE 'unassigned' END AS arm
FROM arm_sessions
GROUP BY user_id`, cfg.UserIDColumn, cfg.Table), nil
}
