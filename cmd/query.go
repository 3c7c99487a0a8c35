package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/pkg/bigquery"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run an ad-hoc BigQuery query with named parameters",
	Long: `Executes arbitrary SQL against BigQuery. Every @placeholder in the
SQL must be bound with --param; unused bindings are ignored.

Examples:
  funnel-cli query --sql "SELECT COUNT(*) FROM t WHERE created > @cutoff" --param cutoff=2024-01-01

  # Estimate what a query would scan without running it
  funnel-cli query --sql "SELECT * FROM huge_table" --dry-run`,
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.String("sql", "", "SQL text to execute (required)")
	f.StringArray("param", nil, "query parameter as name=value, repeatable")
	f.Bool("dry-run", false, "estimate scan cost without running")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sql, _ := cmd.Flags().GetString("sql")
	if strings.TrimSpace(sql) == "" {
		return eris.Wrap(funnel.ErrConfiguration, "query: --sql is required")
	}

	raw, _ := cmd.Flags().GetStringArray("param")
	params, err := parseParams(raw)
	if err != nil {
		return err
	}

	if err := cfg.Validate("bigquery"); err != nil {
		return err
	}

	client, err := bigquery.NewClient(ctx, clientConfig())
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	runner := bigquery.NewRunner(client, cfg.Pricing)

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		est, err := runner.DryRun(ctx, sql, params)
		if err != nil {
			return err
		}
		formatCostEstimate(os.Stdout, est)
		return nil
	}

	res, err := runner.Run(ctx, sql, params)
	if err != nil {
		return err
	}
	formatQueryResult(os.Stdout, res)
	return nil
}

// parseParams converts repeated name=value flags into typed bindings.
// Values are classified bool, then integer, then float, then date, then
// string, mirroring how the query layer infers BigQuery parameter types.
func parseParams(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(raw))
	for _, item := range raw {
		name, value, ok := strings.Cut(item, "=")
		if !ok || name == "" {
			return nil, eris.Wrapf(funnel.ErrValidation, "query: malformed --param %q, want name=value", item)
		}
		params[name] = classifyParam(value)
	}
	return params, nil
}

func classifyParam(v string) any {
	if v == "true" || v == "false" {
		return v == "true"
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if d, err := civil.ParseDate(v); err == nil {
		return d
	}
	return v
}

func formatQueryResult(out io.Writer, res *bigquery.QueryResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(res.Columns) > 0 {
		_, _ = fmt.Fprintln(w, strings.ToUpper(strings.Join(res.Columns, "\t")))
	}
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprintf("%v", v)
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d rows\n", len(res.Rows))
}
