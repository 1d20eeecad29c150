package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	recoverConcurrency int
	recoverJSON        bool
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Re-drive every RUNNING run",
	Long: `Drive every run left RUNNING by an interrupted process until it reaches a
gate or finishes. Runs are driven in parallel, bounded by --concurrency.`,
	RunE: runRecover,
}

func init() {
	recoverCmd.Flags().IntVarP(&recoverConcurrency, "concurrency", "c", 0, "Runs driven at once (default from config)")
	recoverCmd.Flags().BoolVar(&recoverJSON, "json", false, "Print JSON output")

	rootCmd.AddCommand(recoverCmd)
}

func runRecover(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	concurrency := a.cfg.RecoverConcurrency
	if cmd.Flags().Changed("concurrency") {
		concurrency = recoverConcurrency
	}

	results, err := a.ctrl.Recover(ctx, concurrency)
	out := cmd.OutOrStdout()
	if recoverJSON {
		if jsonErr := printJSON(out, results); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	if len(results) == 0 && err == nil {
		fmt.Fprintln(out, "No running runs to recover.") //nolint:errcheck
		return nil
	}
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(out, "✗ %s: %s\n", r.SessionKey, r.Error) //nolint:errcheck
			continue
		}
		fmt.Fprintf(out, "✓ %s: %s (%s)\n", r.SessionKey, r.Status, r.Stage) //nolint:errcheck
	}
	return err
}
