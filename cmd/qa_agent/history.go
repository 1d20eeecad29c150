package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/observability"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <session_key> <kind>",
	Short: "List every version of one artifact",
	Long: `List every version of an artifact, oldest first.

Kinds: spec, strategy, test_cases, code_plan, code`,
	Args: cobra.ExactArgs(2),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print JSON output")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	kind, err := types.ParseKind(args[1])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	versions, err := a.ctrl.History(ctx, args[0], kind)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(cmd.OutOrStdout(), versions)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintHistory(kind, versions)
	return nil
}
