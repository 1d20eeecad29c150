package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/config"
	"github.com/jonathan/qa-orchestrator/internal/server"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the API server",
	Long: `Sign a JWT with JWT_SECRET for use against "qa_agent serve".
The subject is recorded as the operator on decisions and forced failures.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Operator name placed in the token subject")
	_ = tokenCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to load JWT config: %w", err)
	}
	token, err := server.NewJWTService(cfg).GenerateToken(tokenSubject)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token) //nolint:errcheck
	return nil
}
