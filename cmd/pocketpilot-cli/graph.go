package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pocketpilot/internal/advice"
	"pocketpilot/internal/budget"
	applog "pocketpilot/internal/log"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the budget workflow topology",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, _ []string) error {
	// Topology does not depend on the generator backend.
	wf, err := budget.New(advice.Unconfigured{}, budget.WithLogger(applog.Discard()))
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), wf.Graph().Describe())
	return nil
}
