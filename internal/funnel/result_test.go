package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultLookup(t *testing.T) {
	r := FunnelResult{Rows: []StepCount{
		{StepIndex: 0, StepLabel: "view_item", UserCount: 1000},
		{StepIndex: 1, StepLabel: "add_to_cart", UserCount: 400},
		{StepIndex: 2, StepLabel: "purchase", UserCount: 100},
	}}

	row, ok := r.Lookup("add_to_cart")
	require.True(t, ok)
	assert.Equal(t, int64(400), row.UserCount)

	_, ok = r.Lookup("refund")
	assert.False(t, ok)
}

func TestResultLookup_DuplicateLabel(t *testing.T) {
	// A funnel may legitimately repeat an event name; lookup resolves to
	// the earliest step.
	r := FunnelResult{Rows: []StepCount{
		{StepIndex: 0, StepLabel: "page_view", UserCount: 500},
		{StepIndex: 1, StepLabel: "click", UserCount: 300},
		{StepIndex: 2, StepLabel: "page_view", UserCount: 200},
	}}

	row, ok := r.Lookup("page_view")
	require.True(t, ok)
	assert.Equal(t, 0, row.StepIndex)
	assert.Equal(t, int64(500), row.UserCount)
}

func TestResultCounts(t *testing.T) {
	r := FunnelResult{Rows: []StepCount{
		{StepIndex: 0, StepLabel: "a", UserCount: 10},
		{StepIndex: 1, StepLabel: "b", UserCount: 4},
	}}
	assert.Equal(t, []int64{10, 4}, r.Counts())

	empty := FunnelResult{}
	assert.Empty(t, empty.Counts())
}
