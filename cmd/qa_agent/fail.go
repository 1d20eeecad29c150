package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/observability"
)

var (
	failReason string
	failJSON   bool
)

var failCmd = &cobra.Command{
	Use:   "fail <session_key>",
	Short: "Mark a run as failed",
	Args:  cobra.ExactArgs(1),
	RunE:  runFail,
}

func init() {
	failCmd.Flags().StringVarP(&failReason, "reason", "r", "", "Reason recorded on the run")
	failCmd.Flags().BoolVar(&failJSON, "json", false, "Print JSON output")

	rootCmd.AddCommand(failCmd)
}

func runFail(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	snap, err := a.ctrl.ForceFail(ctx, args[0], failReason)
	if err != nil {
		return err
	}
	if failJSON {
		return printJSON(cmd.OutOrStdout(), snap)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintSnapshot(snap)
	return nil
}
