package sqlgen

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
	"github.com/pathwise/funnel-cli/internal/schema"
)

// Postgres renders the plan for a flat warehouse table. The logical shape
// matches the BigQuery render; every match value binds through a
// positional parameter and identifiers are quoted. The implicit-all
// grouping directive is expanded to explicit key lists, Postgres has no
// GROUP BY ALL shorthand.
//
// Args are laid out as $1 range start, $2 range end, $3 window ticks,
// then filter and step values in plan order.
func Postgres(p *plan.Plan) (*Query, error) {
	if err := checkPlan(p); err != nil {
		return nil, err
	}
	if p.Arms != nil {
		return nil, eris.Wrap(funnel.ErrConfiguration,
			"sqlgen: arm assignment requires the BigQuery backend")
	}
	if p.Profile.ParamAccess == schema.ParamNested && hasStepParams(p) {
		return nil, eris.Wrap(funnel.ErrConfiguration,
			"sqlgen: nested event parameters are not addressable on a flat table")
	}

	w := &pgWriter{}
	w.args = append(w.args,
		dateLiteral(p.Dates.Start, p.Profile.DateFormat),
		dateLiteral(p.Dates.End, p.Profile.DateFormat),
		p.WindowTicks)

	w.b.WriteString("WITH filtered_events AS (\n")
	fmt.Fprintf(&w.b, "  SELECT *\n  FROM %s\n", pgTable(p.Table))
	fmt.Fprintf(&w.b, "  WHERE %s\n", pgDateFilter(p.Profile))
	for _, c := range p.Filters {
		fmt.Fprintf(&w.b, "    AND %s\n", w.condition(c, ""))
	}
	w.b.WriteString(")")

	for _, step := range p.Steps {
		w.b.WriteString(",\n")
		w.stepCTE(p, step)
	}
	w.b.WriteString("\n")

	for _, step := range p.Steps {
		if step.Index > 0 {
			w.b.WriteString("UNION ALL\n")
		}
		label := strings.ReplaceAll(step.Name, "'", "''")
		if p.Segment != "" {
			fmt.Fprintf(&w.b, "SELECT %d AS step_index, '%s' AS step_label, seg AS segment, "+
				"COUNT(DISTINCT user_id) AS user_count\n", step.Index, label)
			fmt.Fprintf(&w.b, "FROM s%d\nGROUP BY seg\n", step.Index)
		} else {
			fmt.Fprintf(&w.b, "SELECT %d AS step_index, '%s' AS step_label, "+
				"COUNT(DISTINCT user_id) AS user_count\n", step.Index, label)
			fmt.Fprintf(&w.b, "FROM s%d\n", step.Index)
		}
	}
	if p.Segment != "" {
		w.b.WriteString("ORDER BY step_index, segment")
	} else {
		w.b.WriteString("ORDER BY step_index")
	}

	return &Query{SQL: w.b.String(), Args: w.args}, nil
}

type pgWriter struct {
	b    strings.Builder
	args []any
}

// bind appends a value and returns its placeholder.
func (w *pgWriter) bind(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *pgWriter) condition(c plan.Condition, qual string) string {
	target := qual + pgIdent(c.Field)
	switch c.Match.Kind {
	case funnel.MatchPattern:
		return fmt.Sprintf("%s LIKE %s", target, w.bind(c.Match.Value))
	case funnel.MatchOneOf:
		return fmt.Sprintf("%s = ANY(%s)", target, w.bind(c.Match.Values))
	default:
		return fmt.Sprintf("%s = %s", target, w.bind(c.Match.Value))
	}
}

func (w *pgWriter) stepCTE(p *plan.Plan, step plan.StepPredicate) {
	prof := p.Profile
	user := pgIdent(prof.UserIDColumn)
	ts := pgIdent(prof.TimestampColumn)

	fmt.Fprintf(&w.b, "s%d AS (\n", step.Index)
	switch {
	case p.Segment != "" && step.Index == 0:
		fmt.Fprintf(&w.b, "  SELECT e.%s AS user_id, e.%s AS seg, MIN(e.%s) AS ts\n",
			user, pgIdent(p.Segment), ts)
	case p.Segment != "":
		fmt.Fprintf(&w.b, "  SELECT e.%s AS user_id, s0.seg AS seg, MIN(e.%s) AS ts\n", user, ts)
	default:
		fmt.Fprintf(&w.b, "  SELECT e.%s AS user_id, MIN(e.%s) AS ts\n", user, ts)
	}
	w.b.WriteString("  FROM filtered_events e\n")

	if step.Index > 0 {
		prev := step.Index - 1
		fmt.Fprintf(&w.b, "  JOIN s%d ON e.%s = s%d.user_id\n", prev, user, prev)
		if step.Index > 1 {
			fmt.Fprintf(&w.b, "  JOIN s0 ON e.%s = s0.user_id", user)
			if p.Segment != "" {
				fmt.Fprintf(&w.b, " AND s%d.seg = s0.seg", prev)
			}
			w.b.WriteString("\n")
		}
	}

	fmt.Fprintf(&w.b, "  WHERE e.%s = %s\n", pgIdent(prof.EventNameColumn), w.bind(step.Name))
	for _, c := range step.Params {
		fmt.Fprintf(&w.b, "    AND %s\n", w.condition(c, "e."))
	}
	if step.Index > 0 {
		fmt.Fprintf(&w.b, "    AND e.%s > s%d.ts\n", ts, step.Index-1)
		fmt.Fprintf(&w.b, "    AND e.%s <= %s\n", ts, pgDeadline(prof))
	}

	if p.Segment != "" {
		w.b.WriteString("  GROUP BY user_id, seg\n")
	} else {
		w.b.WriteString("  GROUP BY user_id\n")
	}
	w.b.WriteString(")")
}

func pgDateFilter(prof schema.Profile) string {
	if prof.DateColumn == "" {
		return fmt.Sprintf("CAST(%s AS date) BETWEEN $1::date AND $2::date",
			pgIdent(prof.TimestampColumn))
	}
	return fmt.Sprintf("%s BETWEEN $1 AND $2", pgIdent(prof.DateColumn))
}

func pgDeadline(prof schema.Profile) string {
	if prof.TimestampUnit == schema.UnitMicros {
		return "s0.ts + $3"
	}
	return "s0.ts + ($3 * INTERVAL '1 second')"
}

func pgIdent(col string) string {
	return pgx.Identifier{col}.Sanitize()
}

func pgTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}
