package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pocketpilot/internal/config"
	"pocketpilot/internal/ledger"
	"pocketpilot/internal/render"
)

var (
	flagLedgerDB string
	flagSince    time.Duration
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Summarize assessment outcomes recorded by the worker",
	Args:  cobra.NoArgs,
	RunE:  runLedger,
}

func init() {
	ledgerCmd.Flags().StringVar(&flagLedgerDB, "db", "", "Ledger database path (default LEDGER_DB_PATH)")
	ledgerCmd.Flags().DurationVar(&flagSince, "since", 0, "Only count outcomes newer than this, e.g. 168h (0 = all time)")
	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, _ []string) error {
	path := flagLedgerDB
	if path == "" {
		path = config.Load().LedgerDBPath
	}
	if flagSince < 0 {
		return fmt.Errorf("--since must not be negative")
	}

	led, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer led.Close()

	var since time.Time
	if flagSince > 0 {
		since = time.Now().Add(-flagSince)
	}
	summary, err := led.Summary(cmd.Context(), since)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), render.Summary(summary))
	return nil
}
