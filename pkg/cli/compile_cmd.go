package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"log-manager/internal/filter"
)

func newCompileCmd(opts *rootOptions) *cobra.Command {
	var flags filterFlags

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the SQL a filter compiles to",
		Long:  "Compile a filter file into the SELECT statement the query API would submit. Nothing is sent to Athena.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load(cmd, false)
			if err != nil {
				return err
			}
			req, err := flags.request(cmd.InOrStdin())
			if err != nil {
				return err
			}
			clauses, err := filter.DecodeClauses(req.Filter)
			if err != nil {
				return err
			}

			fopts := filter.Options{
				Database: cfg.Database,
				Table:    cfg.DefaultTable,
				Timezone: cfg.DefaultTimezone,
			}
			if req.Table != "" {
				fopts.Table = req.Table
			}
			if req.Timezone != "" {
				fopts.Timezone = req.Timezone
			}
			compiled, err := filter.Compile(clauses, fopts)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"sql":   compiled.SQL,
					"table": compiled.Table,
				})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), compiled.SQL)
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}
