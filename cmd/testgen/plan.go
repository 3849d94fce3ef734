package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/erp/tools/testgen/internal/workflow"
)

func newPlanCmd(opts *globalOptions) *cobra.Command {
	var (
		name     string
		output   string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve configured workflows step by step, chaining captured identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			names := s.cfg.WorkflowNames()
			if name != "" {
				names = []string{name}
			}
			if len(names) == 0 {
				return fmt.Errorf("%w: no workflows configured", workflow.ErrWorkflowNotFound)
			}

			executor, err := workflow.NewExecutor(workflow.ExecutorConfig{
				Document:    s.doc,
				Resolver:    s.newEngine(),
				Roles:       s.cfg.Roles,
				DefaultRole: s.cfg.DefaultRole,
				Intents:     s.cfg.Intents,
				BaseDir:     s.cfg.BaseDir(),
				Logger:      s.logger,
				Observer:    s.recorder,
			})
			if err != nil {
				return err
			}

			defs := make([]workflow.Definition, 0, len(names))
			for _, n := range names {
				def, err := s.cfg.GetWorkflow(n)
				if err != nil {
					return err
				}
				defs = append(defs, def)
			}

			results, err := executor.ExecuteAll(cmd.Context(), defs, parallel)
			if err != nil {
				return err
			}

			var failed []string
			for _, r := range results {
				if !r.Success {
					failed = append(failed, r.WorkflowName)
				}
			}

			if err := writeOutput(cmd.OutOrStdout(), output, results); err != nil {
				return err
			}
			if len(failed) > 0 {
				return fmt.Errorf("%w: %v", workflow.ErrStepFailed, failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "workflow", "w", "", "Workflow to plan (default: all enabled workflows)")
	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "Output format: json or yaml")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "Maximum number of workflows planned concurrently")
	return cmd
}
