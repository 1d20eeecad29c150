package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/observability"
	"github.com/jonathan/qa-orchestrator/internal/pipeline"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

var (
	resumeDecision    string
	resumeFeedback    string
	resumeContentFile string
	resumeVersion     int
	resumeNoDrive     bool
	resumeVerbose     bool
	resumeJSON        bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session_key>",
	Short: "Submit a review decision and continue the run",
	Long: `Answer the pending review gate of a run.

  APPROVE  accept the artifact and move to the next one
  REJECT   regenerate the artifact using --feedback
  EDIT     replace the artifact with --content-file and accept it

Any other decision is treated as REJECT. Pass --version to guard against
deciding on a version that has since been replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVarP(&resumeDecision, "decision", "d", "", "APPROVE, REJECT or EDIT")
	resumeCmd.Flags().StringVar(&resumeFeedback, "feedback", "", "Reviewer feedback")
	resumeCmd.Flags().StringVar(&resumeContentFile, "content-file", "", "Edited artifact for EDIT (- for stdin)")
	resumeCmd.Flags().IntVar(&resumeVersion, "version", 0, "Version being decided on (0 skips the check)")
	resumeCmd.Flags().BoolVar(&resumeNoDrive, "no-drive", false, "Record the decision without driving")
	resumeCmd.Flags().BoolVarP(&resumeVerbose, "verbose", "v", false, "Print progress")
	resumeCmd.Flags().BoolVar(&resumeJSON, "json", false, "Print JSON output")
	_ = resumeCmd.MarkFlagRequired("decision")

	rootCmd.AddCommand(resumeCmd)
}

func buildDecision() (types.Decision, error) {
	content, err := readContent(resumeContentFile)
	if err != nil {
		return types.Decision{}, err
	}
	d := types.Decision{
		Decision: strings.ToUpper(strings.TrimSpace(resumeDecision)),
		Feedback: resumeFeedback,
		Content:  content,
		Version:  resumeVersion,
	}
	if err := d.Validate(); err != nil {
		return types.Decision{}, fmt.Errorf("invalid decision: %w", err)
	}
	return d, nil
}

func runResume(cmd *cobra.Command, args []string) error {
	decision, err := buildDecision()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, !resumeNoDrive)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	out := cmd.OutOrStdout()
	if resumeNoDrive {
		snap, err := a.ctrl.Decide(ctx, args[0], decision)
		if err != nil {
			return err
		}
		if resumeJSON {
			return printJSON(out, snap)
		}
		observability.NewPrinter(out).PrintSnapshot(snap)
		return nil
	}

	if resumeVerbose {
		ctx = pipeline.WithProgress(ctx, progressPrinter(cmd.ErrOrStderr()))
	}
	res, err := a.ctrl.Resume(ctx, args[0], decision)
	if err != nil {
		return err
	}
	return printResult(out, res, resumeJSON)
}
