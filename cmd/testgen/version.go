package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of testgen",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "testgen version %s\n", version)
			fmt.Fprintf(out, "  Build time: %s\n", buildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", gitCommit)
		},
	}
}
