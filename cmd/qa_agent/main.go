// Package main provides the qa_agent command line: it starts, drives and
// reviews QA artifact runs, and serves the same operations over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	rootConfigPath    string
	rootLogLevel      string
	rootLogFormat     string
	rootBackend       string
	rootCheckpointDir string
	rootDatabaseURL   string
)

var rootCmd = &cobra.Command{
	Use:   "qa_agent",
	Short: "QA artifact pipeline orchestrator",
	Long: `qa_agent turns a feature description into a Gherkin spec, a test strategy, test cases,
a code plan and a test script. Each artifact is generated, evaluated and approved by a human
reviewer before the next one starts. Runs are checkpointed and can be resumed at any gate.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootConfigPath, "config", "", "Path to a JSON or YAML config file")
	flags.StringVar(&rootLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&rootLogFormat, "log-format", "", "Log format: text or json")
	flags.StringVar(&rootBackend, "backend", "", "Checkpoint backend: memory, file, sqlite or postgres")
	flags.StringVar(&rootCheckpointDir, "checkpoint-dir", "", "Directory for the file checkpoint backend")
	flags.StringVar(&rootDatabaseURL, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
