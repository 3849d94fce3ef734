package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/example/erp/tools/testgen/internal/intent"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the operations of a document with their intent classification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			records := intent.Build(s.doc, s.cfg.Intents)
			if output != formatTable {
				return writeOutput(cmd.OutOrStdout(), output, records)
			}

			ops := s.doc.Operations()
			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{
				text.FgHiCyan.Sprint("METHOD"),
				text.FgHiCyan.Sprint("PATH"),
				text.FgHiCyan.Sprint("OPERATION ID"),
				text.FgHiCyan.Sprint("CLASSIFICATION"),
				text.FgHiCyan.Sprint("RISK"),
				text.FgHiCyan.Sprint("AUTH"),
			})
			for i, rec := range records {
				auth := "no"
				if rec.RoleAccess.RequiresAuth {
					auth = "yes"
				}
				t.AppendRow(table.Row{
					rec.HTTPMethod,
					rec.Endpoint,
					ops[i].OperationID,
					rec.Classification,
					rec.RiskLevel,
					auth,
				})
			}
			t.AppendFooter(table.Row{"", fmt.Sprintf("%d operations", len(records))})

			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}
