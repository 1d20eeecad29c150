package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/qa-orchestrator/internal/agents"
	"github.com/jonathan/qa-orchestrator/internal/checkpoint"
	"github.com/jonathan/qa-orchestrator/internal/config"
	"github.com/jonathan/qa-orchestrator/internal/evaluation"
	"github.com/jonathan/qa-orchestrator/internal/llm"
	"github.com/jonathan/qa-orchestrator/internal/logging"
	"github.com/jonathan/qa-orchestrator/internal/observability"
	"github.com/jonathan/qa-orchestrator/internal/pipeline"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// errNoAPIKey is returned by commands that call the model without a key.
var errNoAPIKey = errors.New("GEMINI_API_KEY environment variable or api_key config is required")

// loadConfig builds the effective configuration: file, environment, defaults,
// then any global flags the user set explicitly. Validation runs last so a
// flag can repair a bad file value.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Resolve(rootConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = rootLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = rootLogFormat
	}
	if flags.Changed("backend") {
		cfg.CheckpointBackend = rootBackend
	}
	if flags.Changed("checkpoint-dir") {
		cfg.CheckpointDir = rootCheckpointDir
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = rootDatabaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app bundles what a command needs and how to release it.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	ctrl    *pipeline.Controller
	closers []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// newApp opens the checkpoint store and builds a controller. With withModel
// set the Gemini-backed generators and evaluator are wired; otherwise the
// collaborators refuse to run, which suits commands that never drive.
func newApp(ctx context.Context, cmd *cobra.Command, withModel bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logging.New(cfg.LogLevel, cfg.LogFormat)}

	store, err := checkpoint.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s checkpoint store: %w", cfg.CheckpointBackend, err)
	}
	a.closers = append(a.closers, store)

	var (
		generator agents.Generator = offlineGenerator
		evaluator agents.Evaluator = offlineEvaluator
	)
	if withModel {
		if cfg.APIKey == "" {
			_ = a.Close()
			return nil, errNoAPIKey
		}
		client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.closers = append(a.closers, client)

		tier, err := llm.ParseTier(cfg.ModelTier)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		generator = agents.NewLLMGenerator(client)
		llmEvaluator := agents.NewLLMEvaluator(client)
		llmEvaluator.Tier = tier
		evaluator = llmEvaluator
	}

	generators := make(map[types.Kind]agents.Generator, len(types.Kinds))
	for _, k := range types.Kinds {
		generators[k] = generator
	}

	ctrl, err := pipeline.NewController(pipeline.Deps{
		Engine:           evaluation.New(evaluator, cfg.MaxIterations),
		Store:            store,
		Generators:       generators,
		Context:          agents.StaticContext{TechContext: cfg.TechContext, CodebaseMap: cfg.CodebaseMap},
		Logger:           a.logger,
		DefaultTeamID:    cfg.TeamID,
		DefaultThreshold: cfg.ConfidenceThreshold,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.ctrl = ctrl
	return a, nil
}

var errOffline = errors.New("command was started without model access")

var offlineGenerator = agents.GeneratorFunc(func(_ context.Context, _ agents.GenerateInput) (*agents.GenerateOutput, error) {
	return nil, errOffline
})

var offlineEvaluator = agents.EvaluatorFunc(func(_ context.Context, _ agents.EvaluateInput) (*agents.EvaluateOutput, error) {
	return nil, errOffline
})

// progressPrinter writes one line per progress event.
func progressPrinter(w io.Writer) pipeline.ProgressCallback {
	return func(e pipeline.ProgressEvent) {
		fmt.Fprintf(w, "→ [%s] %s\n", e.Stage, e.Message) //nolint:errcheck
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult shows where a drive stopped.
func printResult(w io.Writer, res *pipeline.Result, asJSON bool) error {
	if asJSON {
		return printJSON(w, res)
	}
	p := observability.NewPrinter(w)
	if res.Suspended() {
		p.PrintPayload(res.Suspend)
		fmt.Fprintf(w, "\nRun is waiting for review. Continue with:\n  qa_agent resume %s --decision APPROVE|REJECT|EDIT\n", res.Snapshot.SessionKey) //nolint:errcheck
		return nil
	}
	p.PrintSnapshot(res.Snapshot)
	return nil
}

// readContent reads a file, or stdin when path is "-".
func readContent(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
