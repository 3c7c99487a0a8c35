// Package plan compiles a funnel definition and schema profile into a
// logical, backend-agnostic query plan: per-step predicates under strict
// ordering and a single window anchored at the first qualifying event.
package plan

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/schema"
)

// Condition constrains one event attribute. Param selects whether Field
// names an event parameter (reached through the profile's parameter
// accessor) or a plain event column.
type Condition struct {
	Field string
	Param bool
	Match funnel.MatchValue
}

// StepPredicate is the logical predicate for one funnel step. Conditions
// are ordered by field name so identical definitions compile to identical
// plans.
type StepPredicate struct {
	Index  int
	Name   string
	Params []Condition
}

// Plan describes a funnel computation without committing to a rendering
// syntax. It is derived deterministically and never mutated; callers
// rebuild it wholesale when inputs change.
type Plan struct {
	Source  funnel.DataSource
	Profile schema.Profile
	Table   string

	Steps   []StepPredicate
	Filters []Condition
	Dates   funnel.DateRange

	// WindowTicks is the funnel window in the profile's timestamp unit,
	// measured from the step-0 anchor time.
	WindowTicks int64

	// Segment optionally names an event column whose anchor-event value
	// splits the result into cohorts.
	Segment string

	// Arms optionally joins an experiment assignment table; each user's
	// arm acts as the segment value.
	Arms *funnel.ABTestConfig

	Aggregation schema.Aggregation
}

// Build compiles a validated definition against a profile and target table.
// Pure function; identical inputs produce structurally identical plans.
func Build(def *funnel.FunnelDefinition, prof schema.Profile, table string) (*Plan, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if prof.Source != def.Source {
		return nil, eris.Wrapf(funnel.ErrConfiguration,
			"plan: profile is for %q but definition targets %q", prof.Source, def.Source)
	}
	if strings.TrimSpace(table) == "" {
		return nil, eris.Wrap(funnel.ErrConfiguration, "plan: events table required")
	}

	windowTicks, err := ticks(def.Window, prof.TimestampUnit)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Source:      def.Source,
		Profile:     prof,
		Table:       table,
		Filters:     conditions(def.Filters, false),
		Dates:       def.Dates,
		WindowTicks: windowTicks,
		Segment:     def.Segment,
		Aggregation: prof.Grouping,
	}

	p.Steps = make([]StepPredicate, 0, len(def.Steps))
	for i, step := range def.Steps {
		p.Steps = append(p.Steps, StepPredicate{
			Index:  i,
			Name:   step.Name,
			Params: conditions(step.Params, true),
		})
	}

	return p, nil
}

// WithArms returns a copy of the plan extended with an arm-assignment join.
// Arms and a segment column are mutually exclusive: the arm is the segment.
func (p *Plan) WithArms(cfg funnel.ABTestConfig) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if p.Segment != "" {
		return nil, eris.Wrap(funnel.ErrValidation, "plan: segment and ab arms are mutually exclusive")
	}
	q := *p
	q.Arms = &cfg
	return &q, nil
}

// Segmented reports whether execution yields one funnel per cohort.
func (p *Plan) Segmented() bool {
	return p.Segment != "" || p.Arms != nil
}

// Align shapes a scanned result to the plan: one row per step in step
// order, zero counts for steps the backend returned no row for. Grouped
// queries drop a step's row entirely when a cohort has nobody there.
func (p *Plan) Align(r funnel.FunnelResult) funnel.FunnelResult {
	counts := make(map[int]int64, len(r.Rows))
	for _, row := range r.Rows {
		counts[row.StepIndex] = row.UserCount
	}

	out := funnel.FunnelResult{Rows: make([]funnel.StepCount, 0, len(p.Steps))}
	for _, s := range p.Steps {
		out.Rows = append(out.Rows, funnel.StepCount{
			StepIndex: s.Index,
			StepLabel: s.Name,
			UserCount: counts[s.Index],
		})
	}
	return out
}

func conditions(m map[string]funnel.MatchValue, param bool) []Condition {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Condition, 0, len(keys))
	for _, k := range keys {
		out = append(out, Condition{Field: k, Param: param, Match: m[k]})
	}
	return out
}

func ticks(window time.Duration, unit schema.Unit) (int64, error) {
	var t int64
	switch unit {
	case schema.UnitMicros:
		t = int64(window / time.Microsecond)
	default:
		t = int64(window / time.Second)
	}
	if t <= 0 {
		return 0, eris.Wrapf(funnel.ErrValidation,
			"plan: window %s is below the source's timestamp granularity", window)
	}
	return t, nil
}
