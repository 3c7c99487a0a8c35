package sqlgen

import (
	"fmt"
	"strings"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
	"github.com/pathwise/funnel-cli/internal/schema"
)

// bqEscaper escapes values embedded in GoogleSQL single-quoted literals.
var bqEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// BigQuery renders the plan as one GoogleSQL statement. A filtered_events
// CTE applies the date range and global filters once, then one CTE per
// step keeps each user's earliest qualifying timestamp: step 0 anchors the
// window, later steps must land strictly after the previous step and no
// later than the anchor plus the window. Match values are inlined as
// escaped literals.
func BigQuery(p *plan.Plan) (string, error) {
	if err := checkPlan(p); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("WITH filtered_events AS (\n")
	fmt.Fprintf(&b, "  SELECT *\n  FROM `%s`\n", p.Table)
	fmt.Fprintf(&b, "  WHERE %s\n", bqDateFilter(p))
	for _, c := range p.Filters {
		fmt.Fprintf(&b, "    AND %s\n", bqCondition(c, "", p.Profile))
	}
	b.WriteString(")")

	for _, step := range p.Steps {
		b.WriteString(",\n")
		bqStepCTE(&b, p, step)
	}
	if p.Arms != nil {
		b.WriteString(",\n")
		bqArmCTEs(&b, p)
	}
	b.WriteString("\n")

	bqFinalSelect(&b, p)
	return b.String(), nil
}

func bqDateFilter(p *plan.Plan) string {
	col := p.Profile.DateColumn
	if col == "" {
		col = fmt.Sprintf("DATE(%s)", p.Profile.TimestampColumn)
	}
	return fmt.Sprintf("%s BETWEEN '%s' AND '%s'", col,
		dateLiteral(p.Dates.Start, p.Profile.DateFormat),
		dateLiteral(p.Dates.End, p.Profile.DateFormat))
}

// bqCondition renders one attribute constraint. qual prefixes column
// references with the event-row alias inside step CTEs; the base CTE has
// no alias and passes "".
func bqCondition(c plan.Condition, qual string, prof schema.Profile) string {
	target := qual + c.Field
	if c.Param && prof.ParamAccess == schema.ParamNested {
		target = bqParamAccessor(qual, c.Field)
	}
	switch c.Match.Kind {
	case funnel.MatchPattern:
		return fmt.Sprintf("%s LIKE '%s'", target, bqEscaper.Replace(c.Match.Value))
	case funnel.MatchOneOf:
		quoted := make([]string, 0, len(c.Match.Values))
		for _, v := range c.Match.Values {
			quoted = append(quoted, "'"+bqEscaper.Replace(v)+"'")
		}
		return fmt.Sprintf("%s IN (%s)", target, strings.Join(quoted, ", "))
	default:
		return fmt.Sprintf("%s = '%s'", target, bqEscaper.Replace(c.Match.Value))
	}
}

// bqParamAccessor reads one GA4 event parameter as a string. The COALESCE
// covers the typed value record so numeric parameters compare in their
// canonical string form.
func bqParamAccessor(qual, key string) string {
	return fmt.Sprintf("(SELECT COALESCE(value.string_value, CAST(value.int_value AS STRING), "+
		"CAST(value.double_value AS STRING)) FROM UNNEST(%sevent_params) WHERE key = '%s')",
		qual, bqEscaper.Replace(key))
}

func bqStepCTE(b *strings.Builder, p *plan.Plan, step plan.StepPredicate) {
	prof := p.Profile
	fmt.Fprintf(b, "s%d AS (\n", step.Index)

	sel := fmt.Sprintf("e.%s AS user_id", prof.UserIDColumn)
	if p.Segment != "" {
		if step.Index == 0 {
			sel += fmt.Sprintf(", e.%s AS seg", p.Segment)
		} else {
			sel += ", s0.seg AS seg"
		}
	}
	fmt.Fprintf(b, "  SELECT %s, MIN(e.%s) AS ts\n", sel, prof.TimestampColumn)
	b.WriteString("  FROM filtered_events e\n")

	if step.Index > 0 {
		prev := step.Index - 1
		fmt.Fprintf(b, "  JOIN s%d ON e.%s = s%d.user_id\n", prev, prof.UserIDColumn, prev)
		if step.Index > 1 {
			// The anchor join carries the window deadline. With a segment
			// each per-segment journey stays separate.
			fmt.Fprintf(b, "  JOIN s0 ON e.%s = s0.user_id", prof.UserIDColumn)
			if p.Segment != "" {
				fmt.Fprintf(b, " AND s%d.seg = s0.seg", prev)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(b, "  WHERE e.%s = '%s'\n", prof.EventNameColumn, bqEscaper.Replace(step.Name))
	for _, c := range step.Params {
		fmt.Fprintf(b, "    AND %s\n", bqCondition(c, "e.", prof))
	}
	if step.Index > 0 {
		fmt.Fprintf(b, "    AND e.%s > s%d.ts\n", prof.TimestampColumn, step.Index-1)
		fmt.Fprintf(b, "    AND e.%s <= %s\n", prof.TimestampColumn, bqDeadline(p))
	}

	if p.Aggregation == schema.GroupImplicitAll {
		b.WriteString("  GROUP BY ALL\n")
	} else if p.Segment != "" {
		b.WriteString("  GROUP BY user_id, seg\n")
	} else {
		b.WriteString("  GROUP BY user_id\n")
	}
	b.WriteString(")")
}

// bqDeadline is the latest timestamp a step may carry, measured from the
// step-0 anchor. Micros timestamps are plain integers; TIMESTAMP columns
// need interval arithmetic.
func bqDeadline(p *plan.Plan) string {
	if p.Profile.TimestampUnit == schema.UnitMicros {
		return fmt.Sprintf("s0.ts + %d", p.WindowTicks)
	}
	return fmt.Sprintf("TIMESTAMP_ADD(s0.ts, INTERVAL %d SECOND)", p.WindowTicks)
}

// bqArmCTEs maps experiment sessions to arms. Session rows suffix the test
// code with the variant, -A for control and -B for test; anything else is
// unassigned. Users observed in more than one arm are dropped.
func bqArmCTEs(b *strings.Builder, p *plan.Plan) {
	cfg := p.Arms
	b.WriteString("arm_sessions AS (\n")
	fmt.Fprintf(b, "  SELECT %s AS user_id,\n", cfg.UserIDColumn)
	b.WriteString("    CASE\n")
	b.WriteString("      WHEN GroupCode LIKE '%-A%' THEN 'control'\n")
	b.WriteString("      WHEN GroupCode LIKE '%-B%' THEN 'test'\n")
	b.WriteString("      ELSE 'unassigned'\n")
	b.WriteString("    END AS arm\n")
	fmt.Fprintf(b, "  FROM `%s`\n", cfg.Table)
	fmt.Fprintf(b, "  WHERE GroupCode LIKE '%s-%%'\n", bqEscaper.Replace(cfg.TestCode))
	fmt.Fprintf(b, "    AND DATE(date) BETWEEN '%s' AND '%s'\n",
		dateLiteral(p.Dates.Start, "2006-01-02"),
		dateLiteral(p.Dates.End, "2006-01-02"))
	b.WriteString("),\n")
	b.WriteString("assignment AS (\n")
	b.WriteString("  SELECT user_id, MIN(arm) AS arm\n")
	b.WriteString("  FROM arm_sessions\n")
	b.WriteString("  GROUP BY user_id\n")
	b.WriteString("  HAVING COUNT(DISTINCT arm) = 1\n")
	b.WriteString(")")
}

// bqFinalGroup picks the grouping clause for the per-step count selects.
// The implicit directive leaves key inference to the backend and must
// yield the same result as the explicit key.
func bqFinalGroup(p *plan.Plan, key string) string {
	if p.Aggregation == schema.GroupImplicitAll {
		return "GROUP BY ALL"
	}
	return "GROUP BY " + key
}

func bqFinalSelect(b *strings.Builder, p *plan.Plan) {
	for _, step := range p.Steps {
		if step.Index > 0 {
			b.WriteString("UNION ALL\n")
		}
		name := bqEscaper.Replace(step.Name)
		switch {
		case p.Arms != nil:
			fmt.Fprintf(b, "SELECT %d AS step_index, '%s' AS step_label, a.arm AS arm, "+
				"COUNT(DISTINCT s.user_id) AS user_count\n", step.Index, name)
			fmt.Fprintf(b, "FROM s%d s\n", step.Index)
			b.WriteString("JOIN assignment a ON s.user_id = a.user_id\n")
			b.WriteString("WHERE a.arm != 'unassigned'\n")
			b.WriteString(bqFinalGroup(p, "arm") + "\n")
		case p.Segment != "":
			fmt.Fprintf(b, "SELECT %d AS step_index, '%s' AS step_label, seg AS segment, "+
				"COUNT(DISTINCT user_id) AS user_count\n", step.Index, name)
			fmt.Fprintf(b, "FROM s%d\n", step.Index)
			b.WriteString(bqFinalGroup(p, "seg") + "\n")
		default:
			fmt.Fprintf(b, "SELECT %d AS step_index, '%s' AS step_label, "+
				"COUNT(DISTINCT user_id) AS user_count\n", step.Index, name)
			fmt.Fprintf(b, "FROM s%d\n", step.Index)
		}
	}

	switch {
	case p.Arms != nil:
		b.WriteString("ORDER BY step_index, arm")
	case p.Segment != "":
		b.WriteString("ORDER BY step_index, segment")
	default:
		b.WriteString("ORDER BY step_index")
	}
}
