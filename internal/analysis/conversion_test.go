package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise/funnel-cli/internal/funnel"
)

func resultOf(counts ...int64) funnel.FunnelResult {
	labels := []string{"view_item", "add_to_cart", "purchase", "refund"}
	r := funnel.FunnelResult{}
	for i, c := range counts {
		r.Rows = append(r.Rows, funnel.StepCount{StepIndex: i, StepLabel: labels[i], UserCount: c})
	}
	return r
}

func TestConversion(t *testing.T) {
	report, err := Conversion(resultOf(1000, 400, 100))
	require.NoError(t, err)

	require.Len(t, report.Steps, 3)
	assert.Equal(t, 1.0, report.Steps[0].Rate)
	assert.InDelta(t, 0.40, report.Steps[1].Rate, 1e-9)
	assert.InDelta(t, 0.25, report.Steps[2].Rate, 1e-9)
	assert.InDelta(t, 0.10, report.Overall, 1e-9)

	require.Len(t, report.Dropoffs, 2)
	first := report.Dropoffs[0]
	assert.Equal(t, int64(600), first.Dropped)
	assert.InDelta(t, 0.60, first.Rate, 1e-9)
	assert.InDelta(t, 0.60, first.OfTotal, 1e-9)

	second := report.Dropoffs[1]
	assert.Equal(t, "add_to_cart", second.FromLabel)
	assert.Equal(t, "purchase", second.ToLabel)
	assert.Equal(t, int64(300), second.Dropped)
	assert.InDelta(t, 0.75, second.Rate, 1e-9)
	assert.InDelta(t, 0.30, second.OfTotal, 1e-9)

	// 75% relative loss at the second boundary beats 60% at the first.
	assert.Equal(t, 1, report.Primary)
}

func TestConversion_TieBreaksEarlier(t *testing.T) {
	// Both boundaries lose half their users.
	report, err := Conversion(resultOf(1000, 500, 250))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Primary)
}

func TestConversion_EmptyResult(t *testing.T) {
	_, err := Conversion(funnel.FunnelResult{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, funnel.ErrEmptyFunnel))
}

func TestConversion_ZeroFirstStep(t *testing.T) {
	_, err := Conversion(resultOf(0, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, funnel.ErrEmptyFunnel))
}

func TestConversion_ZeroMidStep(t *testing.T) {
	// A step nobody reaches is a legitimate funnel, not an error; the
	// following boundary reports 0% conversion instead of dividing by zero.
	report, err := Conversion(resultOf(100, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.Steps[1].Rate)
	assert.Equal(t, 0.0, report.Steps[2].Rate)
	assert.Equal(t, 0.0, report.Overall)
	assert.Equal(t, 0.0, report.Dropoffs[1].Rate)
	assert.Equal(t, 0, report.Primary)
}

func TestConversion_NonMonotone(t *testing.T) {
	// A later step gaining users means the executor is broken; the rates
	// are still reported as computed.
	report, err := Conversion(resultOf(100, 150, 50))
	require.NoError(t, err)

	assert.InDelta(t, 1.5, report.Steps[1].Rate, 1e-9)
	assert.Equal(t, int64(-50), report.Dropoffs[0].Dropped)
	assert.InDelta(t, -0.5, report.Dropoffs[0].Rate, 1e-9)
	assert.Equal(t, 1, report.Primary)
}

func TestConversion_SingleRow(t *testing.T) {
	report, err := Conversion(resultOf(42))
	require.NoError(t, err)

	assert.Equal(t, 1.0, report.Overall)
	assert.Empty(t, report.Dropoffs)
	assert.Equal(t, -1, report.Primary)
}
