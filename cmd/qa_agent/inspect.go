package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/observability"
)

var (
	inspectJSON    bool
	inspectPayload bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <session_key>",
	Short: "Show the state of a run",
	Long: `Show a run's status, stage, versions, evaluations and gate decisions.
With --payload the pending review payload is shown instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print JSON output")
	inspectCmd.Flags().BoolVar(&inspectPayload, "payload", false, "Show the pending review payload")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	out := cmd.OutOrStdout()
	if inspectPayload {
		payload, err := a.ctrl.Payload(ctx, args[0])
		if err != nil {
			return err
		}
		if inspectJSON {
			return printJSON(out, payload)
		}
		observability.NewPrinter(out).PrintPayload(payload)
		return nil
	}

	snap, err := a.ctrl.Inspect(ctx, args[0])
	if err != nil {
		return err
	}
	if inspectJSON {
		return printJSON(out, snap)
	}
	observability.NewPrinter(out).PrintSnapshot(snap)
	return nil
}
