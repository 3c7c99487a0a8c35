package bigquery

import (
	"context"
	"time"

	bq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"
	"google.golang.org/api/iterator"

	"github.com/pathwise/funnel-cli/internal/cost"
	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
)

// Runner executes ad-hoc parameterized queries.
type Runner struct {
	client *bq.Client
	rates  cost.Rates
}

// NewRunner creates a Runner. Returns nil if client is nil.
func NewRunner(client *bq.Client, rates cost.Rates) *Runner {
	if client == nil {
		return nil
	}
	return &Runner{client: client, rates: rates}
}

// QueryResult holds ad-hoc query output: column names and rows in arrival
// order.
type QueryResult struct {
	Columns []string
	Rows    [][]bq.Value
}

// Run executes sql with the given bindings. Every @placeholder in the
// statement must have a binding; bindings the statement never references
// are ignored.
func (r *Runner) Run(ctx context.Context, sql string, params map[string]any) (*QueryResult, error) {
	qp, err := bindParams(sql, params)
	if err != nil {
		return nil, err
	}

	q := r.client.Query(sql)
	q.Parameters = qp
	it, err := submit(ctx, q, "ad-hoc query")
	if err != nil {
		return nil, eris.Wrap(err, "bigquery: run query")
	}

	res := &QueryResult{}
	for {
		var row []bq.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "bigquery: read query rows")
		}
		res.Rows = append(res.Rows, row)
	}
	for _, f := range it.Schema {
		res.Columns = append(res.Columns, f.Name)
	}
	return res, nil
}

// DryRun validates sql and prices its scan without running it.
func (r *Runner) DryRun(ctx context.Context, sql string, params map[string]any) (plan.CostEstimate, error) {
	qp, err := bindParams(sql, params)
	if err != nil {
		return plan.CostEstimate{}, err
	}
	return dryRun(ctx, r.client, sql, qp, r.rates)
}

// bindParams pairs the statement's placeholders with bindings.
func bindParams(sql string, params map[string]any) ([]bq.QueryParameter, error) {
	names := scanPlaceholders(sql)
	out := make([]bq.QueryParameter, 0, len(names))
	for _, name := range names {
		v, ok := params[name]
		if !ok {
			return nil, eris.Wrapf(funnel.ErrMissingParameter, "bigquery: query references @%s", name)
		}
		if err := checkParamType(v); err != nil {
			return nil, eris.Wrapf(err, "bigquery: parameter %s", name)
		}
		out = append(out, bq.QueryParameter{Name: name, Value: v})
	}
	return out, nil
}

// checkParamType accepts the scalar and array shapes the backend binds
// natively.
func checkParamType(v any) error {
	switch v.(type) {
	case bool, int, int64, float64, string, []byte,
		[]string, []int64, []float64,
		time.Time, civil.Date:
		return nil
	default:
		return eris.Wrapf(funnel.ErrValidation, "unsupported parameter type %T", v)
	}
}

// scanPlaceholders collects @name references in first-use order, skipping
// string literals, comments, and @@ system variables.
func scanPlaceholders(sql string) []string {
	var names []string
	seen := make(map[string]bool)

	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(sql, i)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i += 2
			for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i += 2
		case c == '@' && i+1 < len(sql) && sql[i+1] == '@':
			i += 2
		case c == '@':
			j := i + 1
			for j < len(sql) && isIdentChar(sql[j]) {
				j++
			}
			if j > i+1 {
				name := sql[i+1 : j]
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
			i = j
		default:
			i++
		}
	}
	return names
}

func skipQuoted(sql string, start int) int {
	quote := sql[start]
	i := start + 1
	for i < len(sql) {
		switch sql[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1
		default:
			i++
		}
	}
	return i
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
