package funnel

// StepCount is one row of a funnel result: how many distinct users reached
// the step.
type StepCount struct {
	StepIndex int
	StepLabel string
	UserCount int64
}

// FunnelResult is the per-step outcome of one funnel computation. Rows are
// ordered by step index, matching step order in the definition. Results are
// produced by an executor and read-only to the analyzers.
type FunnelResult struct {
	Rows []StepCount
}

// Lookup returns the first row whose label matches. Labels are event names,
// so a funnel that reuses an event name resolves to its earliest step.
func (r FunnelResult) Lookup(label string) (StepCount, bool) {
	for _, row := range r.Rows {
		if row.StepLabel == label {
			return row, true
		}
	}
	return StepCount{}, false
}

// Counts returns the user counts in row order.
func (r FunnelResult) Counts() []int64 {
	counts := make([]int64, len(r.Rows))
	for i, row := range r.Rows {
		counts[i] = row.UserCount
	}
	return counts
}

// SegmentedResult maps a segment value (or experiment arm) to the funnel
// result computed over that cohort.
type SegmentedResult map[string]FunnelResult

// ArmResults holds the funnel outcomes of an A/B comparison. Overall covers
// every user regardless of assignment; Control and Test cover assigned users
// only.
type ArmResults struct {
	Control FunnelResult
	Test    FunnelResult
	Overall FunnelResult
}
