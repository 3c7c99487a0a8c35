package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pathwise/funnel-cli/internal/analysis"
	"github.com/pathwise/funnel-cli/internal/export"
	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/pkg/bigquery"
)

var abtestCmd = &cobra.Command{
	Use:   "abtest",
	Short: "Compare funnel conversion between experiment arms",
	Long: `Runs the funnel separately for the control and test arms of an
experiment and applies a two-proportion z-test to the chosen step pair.

Arms come from the assignment table: session group codes "CODE-A" map to
control, "CODE-B" to test. Users seen in both arms are excluded.

Examples:
  # Compare full-funnel conversion for an experiment
  funnel-cli abtest -d funnels/checkout.yaml --test-code TRAVELUAEAQ

  # Narrow the comparison to one step pair at 99% confidence
  funnel-cli abtest -d funnels/checkout.yaml --test-code TRAVELUAEAQ \
    --first view_item --last purchase --confidence 0.99`,
	RunE: runABTest,
}

func init() {
	addDefinitionFlags(abtestCmd)
	f := abtestCmd.Flags()
	f.String("test-code", "", "experiment code prefixed to session group codes (required)")
	f.String("first", "", "first step label for the comparison (default: first funnel step)")
	f.String("last", "", "last step label for the comparison (default: last funnel step)")
	f.Float64("confidence", 0.95, "confidence level for the significance verdict")
	f.String("output", "", "write the significance report to a .csv or .xlsx file")
	rootCmd.AddCommand(abtestCmd)
}

func runABTest(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	testCode, _ := cmd.Flags().GetString("test-code")
	if testCode == "" {
		return eris.Wrap(funnel.ErrConfiguration, "abtest: --test-code is required")
	}
	if err := cfg.Validate("abtest"); err != nil {
		return err
	}

	def, p, err := compileFromFlags(cmd, "bigquery")
	if err != nil {
		return err
	}

	first, _ := cmd.Flags().GetString("first")
	last, _ := cmd.Flags().GetString("last")
	if first == "" {
		first = def.Steps[0].Name
	}
	if last == "" {
		last = def.Steps[len(def.Steps)-1].Name
	}
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	output, _ := cmd.Flags().GetString("output")

	log := zap.L().With(zap.String("command", "abtest"))

	client, err := bigquery.NewClient(ctx, clientConfig())
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	exec := bigquery.NewExecutor(client, cfg.Pricing)
	arms, err := exec.FunnelByArm(ctx, p, funnel.ABTestConfig{
		Table:        cfg.ABTest.Table,
		TestCode:     testCode,
		UserIDColumn: cfg.ABTest.UserIDColumn,
	})
	if err != nil {
		return err
	}
	log.Info("abtest: arm funnels computed",
		zap.String("funnel", def.Name),
		zap.String("test_code", testCode),
	)

	report, err := analysis.Significance(arms.Control, arms.Test, first, last, confidence)
	if err != nil {
		return err
	}

	formatArms(os.Stdout, arms)
	formatSignificance(os.Stdout, report)

	if output != "" {
		if err := export.WriteSignificance(report, output); err != nil {
			return err
		}
		fmt.Printf("\nReport written to %s\n", output)
	}
	return nil
}

// formatArms writes per-step counts for each arm next to the overall funnel.
func formatArms(out io.Writer, arms funnel.ArmResults) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STEP\tEVENT\tCONTROL\tTEST\tOVERALL")
	_, _ = fmt.Fprintln(w, "----\t-----\t-------\t----\t-------")

	for i, row := range arms.Overall.Rows {
		var control, test int64
		if i < len(arms.Control.Rows) {
			control = arms.Control.Rows[i].UserCount
		}
		if i < len(arms.Test.Rows) {
			test = arms.Test.Rows[i].UserCount
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n",
			row.StepIndex, row.StepLabel, control, test, row.UserCount)
	}
	_ = w.Flush()
}

func formatSignificance(out io.Writer, r *analysis.SignificanceReport) {
	_, _ = fmt.Fprintf(out, "\n--- Significance: %s -> %s ---\n", r.FirstStep, r.LastStep)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Control:\t%d / %d\t%.2f%%\n", r.ControlConverted, r.ControlUsers, r.ControlConversion)
	_, _ = fmt.Fprintf(w, "Test:\t%d / %d\t%.2f%%\n", r.TestConverted, r.TestUsers, r.TestConversion)
	_, _ = fmt.Fprintf(w, "Absolute diff:\t%+.2f pts\n", r.AbsoluteDiff)
	_, _ = fmt.Fprintf(w, "Relative lift:\t%+.2f%%\n", r.RelativeLift)
	_, _ = fmt.Fprintf(w, "Z-score:\t%.4f\n", r.ZScore)
	_, _ = fmt.Fprintf(w, "P-value:\t%.4f\n", r.PValue)
	_, _ = fmt.Fprintf(w, "Significant at %.0f%%:\t%v\n", r.Confidence*100, r.IsSignificant)
	_, _ = fmt.Fprintf(w, "Control CI:\t[%.4f, %.4f]\n", r.ControlInterval.Lower, r.ControlInterval.Upper)
	_, _ = fmt.Fprintf(w, "Test CI:\t[%.4f, %.4f]\n", r.TestInterval.Lower, r.TestInterval.Upper)
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%s\n", r.Recommendation)
}
