// Package sqlgen renders funnel query plans into executable SQL. Two
// dialects are supported: GoogleSQL for BigQuery and PostgreSQL for a flat
// warehouse table. Both emit the same row contract so executors share the
// scanning logic: step_index, step_label, an optional segment or arm
// column, then user_count, ordered by step_index.
package sqlgen

import (
	"regexp"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
	"github.com/pathwise/funnel-cli/internal/schema"
)

// Query is a rendered statement with positional arguments. Args is nil for
// dialects that inline their values.
type Query struct {
	SQL  string
	Args []any
}

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	// Table ids allow dots for project.dataset.table and a trailing
	// wildcard for sharded GA4 exports (events_*).
	tableRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.*-]*$`)
)

// checkPlan rejects identifiers that cannot be rendered safely. Column and
// table names come from user-authored definitions and config, and they
// cannot be bound as query parameters in either dialect.
func checkPlan(p *plan.Plan) error {
	if !tableRe.MatchString(p.Table) {
		return eris.Wrapf(funnel.ErrValidation, "sqlgen: unsafe table name %q", p.Table)
	}
	for _, c := range p.Filters {
		if !identRe.MatchString(c.Field) {
			return eris.Wrapf(funnel.ErrValidation, "sqlgen: unsafe filter column %q", c.Field)
		}
	}
	for _, s := range p.Steps {
		if p.Profile.ParamAccess == schema.ParamNested {
			// Nested parameter keys render as escaped string literals,
			// not identifiers.
			continue
		}
		for _, c := range s.Params {
			if !identRe.MatchString(c.Field) {
				return eris.Wrapf(funnel.ErrValidation, "sqlgen: unsafe parameter column %q", c.Field)
			}
		}
	}
	if p.Segment != "" && !identRe.MatchString(p.Segment) {
		return eris.Wrapf(funnel.ErrValidation, "sqlgen: unsafe segment column %q", p.Segment)
	}
	if p.Arms != nil {
		if !tableRe.MatchString(p.Arms.Table) {
			return eris.Wrapf(funnel.ErrValidation, "sqlgen: unsafe assignment table %q", p.Arms.Table)
		}
		if !identRe.MatchString(p.Arms.UserIDColumn) {
			return eris.Wrapf(funnel.ErrValidation, "sqlgen: unsafe assignment user column %q", p.Arms.UserIDColumn)
		}
	}
	return nil
}

// dateLiteral renders a civil date in the profile's layout.
func dateLiteral(d civil.Date, layout string) string {
	return d.In(time.UTC).Format(layout)
}

func hasStepParams(p *plan.Plan) bool {
	for _, s := range p.Steps {
		if len(s.Params) > 0 {
			return true
		}
	}
	return false
}
