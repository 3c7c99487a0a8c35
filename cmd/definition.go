package main

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/plan"
	"github.com/pathwise/funnel-cli/internal/schema"
)

// addDefinitionFlags registers the flags shared by every command that
// compiles a funnel definition.
func addDefinitionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("definition", "d", "", "path to a funnel definition YAML file (required)")
	f.String("from", "", "override the definition's start date (YYYY-MM-DD)")
	f.String("to", "", "override the definition's end date (YYYY-MM-DD)")
	f.String("window", "", "override the conversion window (e.g. 45s, 30m, 8h, 7d)")
	f.String("source", "", "override the event schema: standard or ga4")
	f.String("table", "", "events table (default from config)")
}

// loadDefinition reads the --definition file and applies flag overrides.
func loadDefinition(cmd *cobra.Command) (*funnel.FunnelDefinition, error) {
	path, _ := cmd.Flags().GetString("definition")
	if path == "" {
		return nil, eris.Wrap(funnel.ErrConfiguration, "cli: --definition is required")
	}

	def, err := funnel.LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cmd, def); err != nil {
		return nil, err
	}
	return def, nil
}

// applyOverrides rewrites definition fields from flags and revalidates.
// Flags the command did not register are left alone.
func applyOverrides(cmd *cobra.Command, def *funnel.FunnelDefinition) error {
	f := cmd.Flags()

	if v, _ := f.GetString("from"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return eris.Wrapf(funnel.ErrValidation, "cli: parse --from %q", v)
		}
		def.Dates.Start = d
	}
	if v, _ := f.GetString("to"); v != "" {
		d, err := civil.ParseDate(v)
		if err != nil {
			return eris.Wrapf(funnel.ErrValidation, "cli: parse --to %q", v)
		}
		def.Dates.End = d
	}
	if v, _ := f.GetString("window"); v != "" {
		w, err := funnel.ParseWindow(v)
		if err != nil {
			return err
		}
		def.Window = w
	}
	if v, _ := f.GetString("source"); v != "" {
		src, err := funnel.ParseSource(v)
		if err != nil {
			return err
		}
		def.Source = src
	}
	if f.Lookup("group-by") != nil {
		if v, _ := f.GetString("group-by"); v != "" {
			def.Segment = v
		}
	}

	return def.Validate()
}

// resolveTable picks the events table: the --table flag when given,
// otherwise the configured table for the backend.
func resolveTable(cmd *cobra.Command, backend string) (string, error) {
	if v, _ := cmd.Flags().GetString("table"); v != "" {
		return v, nil
	}
	if backend == "postgres" {
		return cfg.Warehouse.Table, nil
	}
	if !strings.Contains(cfg.BigQuery.Table, ".") &&
		(cfg.BigQuery.ProjectID == "" || cfg.BigQuery.Dataset == "") {
		return "", eris.Wrap(funnel.ErrConfiguration,
			"cli: no events table configured, set bigquery.project_id and bigquery.dataset or pass --table")
	}
	return cfg.BigQuery.EventsTable(), nil
}

// compileFromFlags loads the definition and compiles it into a query plan
// for the given backend.
func compileFromFlags(cmd *cobra.Command, backend string) (*funnel.FunnelDefinition, *plan.Plan, error) {
	def, err := loadDefinition(cmd)
	if err != nil {
		return nil, nil, err
	}

	prof, err := schema.ForSource(def.Source)
	if err != nil {
		return nil, nil, err
	}

	table, err := resolveTable(cmd, backend)
	if err != nil {
		return nil, nil, err
	}

	p, err := plan.Build(def, prof, table)
	if err != nil {
		return nil, nil, err
	}
	return def, p, nil
}
