package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/pipeline"
)

var (
	driveVerbose bool
	driveJSON    bool
)

var driveCmd = &cobra.Command{
	Use:   "drive <session_key>",
	Short: "Drive a run until it reaches a review gate or finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runDrive,
}

func init() {
	driveCmd.Flags().BoolVarP(&driveVerbose, "verbose", "v", false, "Print progress")
	driveCmd.Flags().BoolVar(&driveJSON, "json", false, "Print JSON output")

	rootCmd.AddCommand(driveCmd)
}

func runDrive(cmd *cobra.Command, args []string) error {
	// Interrupting leaves the run RUNNING at its last checkpoint.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if driveVerbose {
		ctx = pipeline.WithProgress(ctx, progressPrinter(cmd.ErrOrStderr()))
	}
	res, err := a.ctrl.Drive(ctx, args[0])
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), res, driveJSON)
}
