//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise/funnel-cli/internal/analysis"
	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
)

func checkoutReport(t *testing.T) *analysis.ConversionReport {
	t.Helper()
	r, err := analysis.Conversion(funnel.FunnelResult{Rows: []funnel.StepCount{
		{StepIndex: 0, StepLabel: "view_item", UserCount: 1000},
		{StepIndex: 1, StepLabel: "add_to_cart", UserCount: 400},
		{StepIndex: 2, StepLabel: "purchase", UserCount: 100},
	}})
	require.NoError(t, err)
	return r
}

func TestFormatConversion(t *testing.T) {
	var buf bytes.Buffer
	formatConversion(&buf, "checkout", checkoutReport(t))

	output := buf.String()
	assert.Contains(t, output, "Funnel: checkout")
	assert.Contains(t, output, "STEP")
	assert.Contains(t, output, "EVENT")
	assert.Contains(t, output, "view_item")
	assert.Contains(t, output, "1000")
	assert.Contains(t, output, "40.0%")
	assert.Contains(t, output, "25.0%")
	assert.Contains(t, output, "Overall conversion: 10.00%")
	assert.Contains(t, output, "Largest dropoff: add_to_cart -> purchase")
	assert.Contains(t, output, "75.0% of entrants, 300 users")
}

func TestFormatSegments_SortedByName(t *testing.T) {
	reports := map[string]*analysis.ConversionReport{
		"ios":     checkoutReport(t),
		"android": checkoutReport(t),
	}

	var buf bytes.Buffer
	formatSegments(&buf, reports)

	output := buf.String()
	android := bytes.Index(buf.Bytes(), []byte("Funnel: android"))
	ios := bytes.Index(buf.Bytes(), []byte("Funnel: ios"))
	require.NotEqual(t, -1, android, output)
	require.NotEqual(t, -1, ios, output)
	assert.Less(t, android, ios)
}

func TestConversionBySegment_SkipsEmptyCohorts(t *testing.T) {
	split := funnel.SegmentedResult{
		"web": {Rows: []funnel.StepCount{
			{StepIndex: 0, StepLabel: "view_item", UserCount: 100},
			{StepIndex: 1, StepLabel: "purchase", UserCount: 10},
		}},
		"kiosk": {Rows: []funnel.StepCount{
			{StepIndex: 0, StepLabel: "view_item", UserCount: 0},
			{StepIndex: 1, StepLabel: "purchase", UserCount: 0},
		}},
	}

	reports := conversionBySegment(split)
	require.Len(t, reports, 1)
	assert.Contains(t, reports, "web")
}

func TestFormatCostEstimate(t *testing.T) {
	var buf bytes.Buffer
	formatCostEstimate(&buf, plan.CostEstimate{BytesProcessed: 3 << 30, USD: 0.0183})

	output := buf.String()
	assert.Contains(t, output, "Dry Run")
	assert.Contains(t, output, "3.00 GiB")
	assert.Contains(t, output, "$0.0183")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KiB"},
		{10 << 20, "10.00 MiB"},
		{3 << 30, "3.00 GiB"},
		{1<<40 + 1<<39, "1.50 TiB"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, formatBytes(tc.n))
	}
}
