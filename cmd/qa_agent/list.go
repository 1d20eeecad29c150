package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/observability"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

var (
	listStatus string
	listJSON   bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Filter by status: RUNNING, WAITING_APPROVAL, COMPLETED, FAILED")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON output")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	summaries, err := a.ctrl.List(ctx, types.Status(strings.ToUpper(listStatus)))
	if err != nil {
		return err
	}
	if listJSON {
		return printJSON(cmd.OutOrStdout(), summaries)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintSummaries(summaries)
	return nil
}
