package warehouse

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
	"github.com/pathwise/funnel-cli/internal/schema"
)

func testPlan(t *testing.T, mutate func(*funnel.FunnelDefinition)) *plan.Plan {
	t.Helper()
	def := &funnel.FunnelDefinition{
		Name:   "checkout",
		Source: funnel.SourceStandard,
		Steps: []funnel.EventStep{
			{Name: "view_item"},
			{Name: "purchase"},
		},
		Dates: funnel.DateRange{
			Start: civil.Date{Year: 2024, Month: time.January, Day: 1},
			End:   civil.Date{Year: 2024, Month: time.January, Day: 31},
		},
		Window: 24 * time.Hour,
	}
	if mutate != nil {
		mutate(def)
	}
	prof, err := schema.ForSource(def.Source)
	require.NoError(t, err)
	p, err := plan.Build(def, prof, "analytics.events")
	require.NoError(t, err)
	return p
}

func TestNewExecutor_NilPool(t *testing.T) {
	assert.Nil(t, NewExecutor(nil))
}

func TestExecute(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WITH filtered_events AS (")).
		WithArgs("2024-01-01", "2024-01-31", int64(86400), "view_item", "purchase").
		WillReturnRows(
			pgxmock.NewRows([]string{"step_index", "step_label", "user_count"}).
				AddRow(0, "view_item", int64(1000)).
				AddRow(1, "purchase", int64(100)),
		)

	e := NewExecutor(mock)
	res, err := e.Execute(context.Background(), testPlan(t, nil))
	require.NoError(t, err)

	assert.Equal(t, []funnel.StepCount{
		{StepIndex: 0, StepLabel: "view_item", UserCount: 1000},
		{StepIndex: 1, StepLabel: "purchase", UserCount: 100},
	}, res.Rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_RejectsSegmentedPlan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := testPlan(t, func(def *funnel.FunnelDefinition) { def.Segment = "platform" })

	e := NewExecutor(mock)
	_, err = e.Execute(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, funnel.ErrValidation))
}

func TestExecute_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WITH filtered_events AS (")).
		WillReturnError(errors.New("connection refused"))

	e := NewExecutor(mock)
	_, err = e.Execute(context.Background(), testPlan(t, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run funnel query")
}

func TestExecuteSegmented(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WITH filtered_events AS (")).
		WithArgs("2024-01-01", "2024-01-31", int64(86400), "view_item", "purchase").
		WillReturnRows(
			pgxmock.NewRows([]string{"step_index", "step_label", "segment", "user_count"}).
				AddRow(0, "view_item", "android", int64(500)).
				AddRow(0, "view_item", "ios", int64(400)).
				AddRow(1, "purchase", "android", int64(50)),
		)

	p := testPlan(t, func(def *funnel.FunnelDefinition) { def.Segment = "platform" })

	e := NewExecutor(mock)
	out, err := e.ExecuteSegmented(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, []int64{500, 50}, out["android"].Counts())
	// ios converted nobody at purchase, so the grouped query returned no
	// row for it; the result still carries the step.
	assert.Equal(t, []int64{400, 0}, out["ios"].Counts())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteSegmented_RejectsPlainPlan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := NewExecutor(mock)
	_, err = e.ExecuteSegmented(context.Background(), testPlan(t, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, funnel.ErrValidation))
}

func TestDryRun_Unsupported(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := NewExecutor(mock)
	_, err = e.DryRun(context.Background(), testPlan(t, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, funnel.ErrConfiguration))
	assert.Contains(t, err.Error(), "BigQuery")
}
