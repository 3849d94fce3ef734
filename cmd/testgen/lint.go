package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLintCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Validate the structure of a document",
		Long: `lint validates the document strictly. Resolution itself is lenient and
records unresolved references as gaps; lint reports them as errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			if err := s.doc.Lint(cmd.Context()); err != nil {
				s.logger.Warn("document failed validation", zap.Error(err))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: OK (%d operations)\n", s.doc.Title, s.doc.Version, len(s.doc.Operations()))
			return nil
		},
	}
}
