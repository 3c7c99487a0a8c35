package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pathwise/funnel-cli/internal/sqlgen"
)

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Print the SQL a funnel definition compiles to",
	Long: `Renders the funnel query without executing it. Useful for reviewing
what would run, or for pasting into a warehouse console.

Examples:
  funnel-cli sql -d funnels/checkout.yaml
  funnel-cli sql -d funnels/checkout.yaml --dialect postgres --table analytics.events`,
	RunE: runSQL,
}

func init() {
	addDefinitionFlags(sqlCmd)
	f := sqlCmd.Flags()
	f.String("group-by", "", "break results down by an event column")
	f.String("dialect", "bigquery", "SQL dialect: bigquery or postgres")
	rootCmd.AddCommand(sqlCmd)
}

func runSQL(cmd *cobra.Command, _ []string) error {
	dialect, _ := cmd.Flags().GetString("dialect")
	if dialect != "bigquery" && dialect != "postgres" {
		return eris.Errorf("sql: unknown dialect %q (use bigquery or postgres)", dialect)
	}

	_, p, err := compileFromFlags(cmd, dialect)
	if err != nil {
		return err
	}

	if dialect == "postgres" {
		q, err := sqlgen.Postgres(p)
		if err != nil {
			return err
		}
		fmt.Println(q.SQL)
		for i, arg := range q.Args {
			fmt.Printf("-- $%d = %v\n", i+1, arg)
		}
		return nil
	}

	sql, err := sqlgen.BigQuery(p)
	if err != nil {
		return err
	}
	fmt.Println(sql)
	return nil
}
