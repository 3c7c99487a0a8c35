package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pathwise/funnel-cli/internal/analysis"
	"github.com/pathwise/funnel-cli/internal/export"
	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
	"github.com/pathwise/funnel-cli/internal/warehouse"
	"github.com/pathwise/funnel-cli/pkg/bigquery"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute a funnel and report conversion",
	Long: `Compiles a funnel definition, runs it against the configured backend
and prints per-step conversion with dropoff attribution.

Examples:
  # Checkout funnel on BigQuery
  funnel-cli run -d funnels/checkout.yaml

  # Same funnel for one week, broken down by platform
  funnel-cli run -d funnels/checkout.yaml --from 2024-05-01 --to 2024-05-07 --group-by platform

  # Estimate scan cost without running
  funnel-cli run -d funnels/checkout.yaml --dry-run

  # Against the Postgres events mirror, exported to a file
  funnel-cli run -d funnels/checkout.yaml --executor postgres --output report.csv`,
	RunE: runRun,
}

func init() {
	addDefinitionFlags(runCmd)
	f := runCmd.Flags()
	f.String("group-by", "", "break results down by an event column")
	f.String("executor", "bigquery", "backend to run against: bigquery or postgres")
	f.Bool("dry-run", false, "estimate scan cost without running (BigQuery only)")
	f.String("output", "", "write the report to a .csv or .xlsx file")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, _ := cmd.Flags().GetString("executor")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	output, _ := cmd.Flags().GetString("output")

	def, p, err := compileFromFlags(cmd, backend)
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "run"))

	exec, cleanup, err := newExecutor(ctx, backend)
	if err != nil {
		return err
	}
	defer cleanup()

	if dryRun {
		est, err := exec.DryRun(ctx, p)
		if err != nil {
			return err
		}
		formatCostEstimate(os.Stdout, est)
		return nil
	}

	if p.Segmented() {
		split, err := exec.ExecuteSegmented(ctx, p)
		if err != nil {
			return err
		}
		log.Info("run: segmented funnel computed",
			zap.String("funnel", def.Name),
			zap.Int("cohorts", len(split)),
		)

		reports := conversionBySegment(split)
		formatSegments(os.Stdout, reports)
		if output != "" {
			if err := export.WriteSegments(reports, output); err != nil {
				return err
			}
			fmt.Printf("\nReport written to %s\n", output)
		}
		return nil
	}

	res, err := exec.Execute(ctx, p)
	if err != nil {
		return err
	}
	log.Info("run: funnel computed",
		zap.String("funnel", def.Name),
		zap.Int("steps", len(res.Rows)),
	)

	report, err := analysis.Conversion(res)
	if err != nil {
		return err
	}

	formatConversion(os.Stdout, def.Name, report)
	if output != "" {
		if err := export.WriteConversion(report, output); err != nil {
			return err
		}
		fmt.Printf("\nReport written to %s\n", output)
	}
	return nil
}

// newExecutor builds the backend named by --executor. The returned cleanup
// closes whatever the executor holds open.
func newExecutor(ctx context.Context, backend string) (plan.Executor, func(), error) {
	switch backend {
	case "bigquery":
		if err := cfg.Validate("bigquery"); err != nil {
			return nil, nil, err
		}
		client, err := bigquery.NewClient(ctx, clientConfig())
		if err != nil {
			return nil, nil, err
		}
		return bigquery.NewExecutor(client, cfg.Pricing), func() { _ = client.Close() }, nil
	case "postgres":
		if err := cfg.Validate("postgres"); err != nil {
			return nil, nil, err
		}
		pool, err := warehouse.Connect(ctx, cfg.Warehouse.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return warehouse.NewExecutor(pool), pool.Close, nil
	}
	return nil, nil, eris.Errorf("run: unknown executor %q (use bigquery or postgres)", backend)
}

// conversionBySegment analyzes each cohort, skipping cohorts too empty to
// report on rather than failing the whole run.
func conversionBySegment(split funnel.SegmentedResult) map[string]*analysis.ConversionReport {
	reports := make(map[string]*analysis.ConversionReport, len(split))
	for seg, res := range split {
		rep, err := analysis.Conversion(res)
		if err != nil {
			zap.L().Warn("run: skipping cohort", zap.String("segment", seg), zap.Error(err))
			continue
		}
		reports[seg] = rep
	}
	return reports
}

// formatConversion writes the step table and attrition summary to out.
func formatConversion(out io.Writer, name string, r *analysis.ConversionReport) {
	if name != "" {
		_, _ = fmt.Fprintf(out, "Funnel: %s\n", name)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STEP\tEVENT\tUSERS\tSTEP_RATE\tOVERALL")
	_, _ = fmt.Fprintln(w, "----\t-----\t-----\t---------\t-------")

	var first int64
	if len(r.Steps) > 0 {
		first = r.Steps[0].UserCount
	}
	for _, s := range r.Steps {
		overall := 0.0
		if first > 0 {
			overall = float64(s.UserCount) / float64(first)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%.1f%%\t%.1f%%\n",
			s.StepIndex, s.StepLabel, s.UserCount, s.Rate*100, overall*100)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nOverall conversion: %.2f%%\n", r.Overall*100)
	if r.Primary >= 0 && r.Primary < len(r.Dropoffs) {
		d := r.Dropoffs[r.Primary]
		_, _ = fmt.Fprintf(out, "Largest dropoff: %s -> %s (%.1f%% of entrants, %d users)\n",
			d.FromLabel, d.ToLabel, d.Rate*100, d.Dropped)
	}
}

// formatSegments writes one conversion block per cohort, ordered by name.
func formatSegments(out io.Writer, reports map[string]*analysis.ConversionReport) {
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		formatConversion(out, name, reports[name])
	}
}

func formatCostEstimate(out io.Writer, est plan.CostEstimate) {
	_, _ = fmt.Fprintln(out, "--- Dry Run ---")
	_, _ = fmt.Fprintf(out, "Bytes processed: %s\n", formatBytes(est.BytesProcessed))
	_, _ = fmt.Fprintf(out, "Estimated cost:  $%.4f\n", est.USD)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
