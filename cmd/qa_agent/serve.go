package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/config"
	"github.com/jonathan/qa-orchestrator/internal/server"
)

var (
	servePort    int
	serveRecover bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing run operations.

Read endpoints are open. When JWT_SECRET is set, endpoints that start, drive,
resume or fail runs require a bearer token (see "qa_agent token").

Endpoints:
  GET  /health                                      - Health check
  GET  /runs?status=                                - List runs
  GET  /runs/{session_key}                          - Run snapshot
  GET  /runs/{session_key}/payload                  - Pending review payload
  GET  /runs/{session_key}/artifacts/{kind}/history - Artifact versions
  POST /runs                                        - Start a run (?drive=true)
  POST /runs/recover                                - Re-drive running runs
  POST /runs/{session_key}/drive                    - Drive to the next gate
  POST /runs/{session_key}/drive/stream             - Drive with SSE progress
  POST /runs/{session_key}/resume                   - Submit a decision (?drive=false)
  POST /runs/{session_key}/fail                     - Force-fail a run`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config, 8080)")
	serveCmd.Flags().BoolVar(&serveRecover, "recover", false, "Re-drive RUNNING runs before accepting requests")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	port := a.cfg.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	var jwtCfg *config.JWTConfig
	if config.JWTEnabled() {
		jwtCfg, err = config.NewJWTConfig()
		if err != nil {
			return fmt.Errorf("failed to load JWT config: %w", err)
		}
	} else {
		a.logger.Warn("JWT_SECRET not set, mutating endpoints are unauthenticated")
	}

	if serveRecover {
		results, err := a.ctrl.Recover(ctx, a.cfg.RecoverConcurrency)
		if err != nil {
			return fmt.Errorf("recovery failed: %w", err)
		}
		a.logger.Info("recovered runs", "count", len(results))
	}

	srv, err := server.New(server.Config{
		Port:               port,
		Controller:         a.ctrl,
		JWT:                jwtCfg,
		Logger:             a.logger,
		RecoverConcurrency: a.cfg.RecoverConcurrency,
	})
	if err != nil {
		return err
	}

	a.logger.Info("starting server", "port", port, "backend", a.cfg.CheckpointBackend)
	return srv.Start(ctx)
}
