package plan

import (
	"context"

	"github.com/pathwise/funnel-cli/internal/funnel"
)

// CostEstimate is the outcome of a dry-run execution.
type CostEstimate struct {
	BytesProcessed int64
	USD            float64
}

// Executor runs compiled funnel plans against a warehouse backend. Execute
// returns one row per step in step order. ExecuteSegmented returns one
// funnel result per segment value or experiment arm and requires a
// segmented plan. DryRun estimates cost without running the query; backends
// without a native dry run return an error rather than a zero estimate.
//
// Executors own all I/O, retries and suspension; plan construction and the
// analyzers stay pure.
type Executor interface {
	Execute(ctx context.Context, p *Plan) (funnel.FunnelResult, error)
	ExecuteSegmented(ctx context.Context, p *Plan) (funnel.SegmentedResult, error)
	DryRun(ctx context.Context, p *Plan) (CostEstimate, error)
}
