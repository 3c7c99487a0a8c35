// Package analysis derives analytics from funnel results: step-over-step
// conversion, dropoff ranking and two-proportion significance testing
// between experiment arms. All functions are pure; rates are fractions
// unless a field says otherwise.
package analysis

import (
	"github.com/rotisserie/eris"

	"github.com/pathwise/funnel-cli/internal/funnel"
)

// StepRate is one funnel step with its conversion from the previous step.
type StepRate struct {
	StepIndex int
	StepLabel string
	UserCount int64
	// Rate is the conversion from the previous step as a fraction. The
	// first step is always 1. A step following a zero-count step reports 0
	// rather than dividing by zero.
	Rate float64
}

// Dropoff describes the user loss across one step boundary.
type Dropoff struct {
	FromIndex int
	FromLabel string
	ToIndex   int
	ToLabel   string
	Entered   int64
	Completed int64
	Dropped   int64
	// Rate is Dropped as a fraction of Entered; 0 when nobody entered.
	Rate float64
	// OfTotal is Dropped as a fraction of the funnel's initial users.
	OfTotal float64
}

// ConversionReport summarizes completion across one funnel result.
type ConversionReport struct {
	Steps   []StepRate
	Overall float64
	// Dropoffs has one entry per adjacent step boundary.
	Dropoffs []Dropoff
	// Primary indexes the boundary with the largest relative loss, ties
	// broken toward the earlier boundary; -1 when there are no boundaries.
	Primary int
}

// Conversion computes step rates, overall conversion and attrition for a
// funnel result. Rows must already be ordered by step index. The first step
// must have users; otherwise every rate is undefined and ErrEmptyFunnel is
// returned. A later step exceeding its predecessor indicates a broken
// executor; its rates are reported as computed rather than rejected.
func Conversion(result funnel.FunnelResult) (*ConversionReport, error) {
	if len(result.Rows) == 0 {
		return nil, eris.Wrap(funnel.ErrEmptyFunnel, "analysis: result has no rows")
	}
	first := result.Rows[0]
	if first.UserCount <= 0 {
		return nil, eris.Wrapf(funnel.ErrEmptyFunnel, "analysis: step %q has no users", first.StepLabel)
	}

	report := &ConversionReport{
		Steps:   make([]StepRate, 0, len(result.Rows)),
		Primary: -1,
	}

	for i, row := range result.Rows {
		rate := 1.0
		if i > 0 {
			prev := result.Rows[i-1].UserCount
			if prev > 0 {
				rate = float64(row.UserCount) / float64(prev)
			} else {
				rate = 0
			}
		}
		report.Steps = append(report.Steps, StepRate{
			StepIndex: row.StepIndex,
			StepLabel: row.StepLabel,
			UserCount: row.UserCount,
			Rate:      rate,
		})
	}

	last := result.Rows[len(result.Rows)-1]
	report.Overall = float64(last.UserCount) / float64(first.UserCount)

	entered := float64(first.UserCount)
	maxRate := 0.0
	for i := 0; i+1 < len(result.Rows); i++ {
		from, to := result.Rows[i], result.Rows[i+1]
		dropped := from.UserCount - to.UserCount

		d := Dropoff{
			FromIndex: from.StepIndex,
			FromLabel: from.StepLabel,
			ToIndex:   to.StepIndex,
			ToLabel:   to.StepLabel,
			Entered:   from.UserCount,
			Completed: to.UserCount,
			Dropped:   dropped,
			OfTotal:   float64(dropped) / entered,
		}
		if from.UserCount > 0 {
			d.Rate = float64(dropped) / float64(from.UserCount)
		}
		report.Dropoffs = append(report.Dropoffs, d)

		if report.Primary < 0 || d.Rate > maxRate {
			maxRate = d.Rate
			report.Primary = i
		}
	}

	return report, nil
}
