package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/agents"
	"github.com/jonathan/qa-orchestrator/internal/pipeline"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

var (
	startInput     string
	startInputFile string
	startQuestions string
	startTeam      string
	startThreshold float64
	startDrive     bool
	startVerbose   bool
	startJSON      bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new run from a feature description",
	Long: `Create a run for a feature description and print its session key.
With --drive the run is also driven to the first review gate.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startInput, "input", "i", "", "Feature description")
	startCmd.Flags().StringVarP(&startInputFile, "input-file", "f", "", "File holding the feature description (- for stdin)")
	startCmd.Flags().StringVar(&startQuestions, "clarifications-file", "", "JSON or YAML list of clarification questions and answers (- for stdin)")
	startCmd.Flags().StringVar(&startTeam, "team", "", "Team ID (default from config)")
	startCmd.Flags().Float64Var(&startThreshold, "threshold", 0, "Confidence threshold 0.0-1.0 (default from config)")
	startCmd.Flags().BoolVar(&startDrive, "drive", false, "Drive the run to its first gate")
	startCmd.Flags().BoolVarP(&startVerbose, "verbose", "v", false, "Print progress while driving")
	startCmd.Flags().BoolVar(&startJSON, "json", false, "Print JSON output")

	rootCmd.AddCommand(startCmd)
}

func startInputText() (string, error) {
	if startInput != "" && startInputFile != "" {
		return "", fmt.Errorf("--input and --input-file are mutually exclusive")
	}
	text := startInput
	if startInputFile != "" {
		var err error
		if text, err = readContent(startInputFile); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("a feature description is required (--input or --input-file)")
	}
	return text, nil
}

func startClarifications() ([]types.Question, error) {
	if startQuestions == "-" && startInputFile == "-" {
		return nil, fmt.Errorf("--input-file and --clarifications-file cannot both read stdin")
	}
	raw, err := readContent(startQuestions)
	if err != nil {
		return nil, err
	}
	return agents.ParseQuestions([]byte(raw))
}

func runStart(cmd *cobra.Command, _ []string) error {
	input, err := startInputText()
	if err != nil {
		return err
	}
	questions, err := startClarifications()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd, startDrive)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	key, err := a.ctrl.StartRun(ctx, types.StartRequest{
		RawInput:            input,
		TeamID:              startTeam,
		ConfidenceThreshold: startThreshold,
		Clarifications:      questions,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !startDrive {
		if startJSON {
			return printJSON(out, map[string]string{"session_key": key})
		}
		fmt.Fprintf(out, "Started run %s\n", key) //nolint:errcheck
		return nil
	}

	if startVerbose {
		ctx = pipeline.WithProgress(ctx, progressPrinter(cmd.ErrOrStderr()))
	}
	res, err := a.ctrl.Drive(ctx, key)
	if err != nil {
		return err
	}
	return printResult(out, res, startJSON)
}
