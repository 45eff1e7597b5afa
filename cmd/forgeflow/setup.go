package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/quendro/forgeflow/pkg/audit"
	"github.com/quendro/forgeflow/pkg/config"
	"github.com/quendro/forgeflow/pkg/environment"
	"github.com/quendro/forgeflow/pkg/log"
	"github.com/quendro/forgeflow/pkg/otelhelper"
	"github.com/quendro/forgeflow/pkg/persistence"
	"github.com/quendro/forgeflow/pkg/persistence/file"
	"github.com/quendro/forgeflow/pkg/tools/simulated"
	"github.com/quendro/forgeflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

// Exit codes surfaced by every command.
const (
	exitOK       = 0
	exitFailed   = 1 // Run failed; a diagnostic bundle was written
	exitNotFound = 2 // Unknown workflow id
)

var errNotFound = errors.New("workflow not found")

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}

	if errors.Is(err, errNotFound) || persistence.IsContextNotFound(err) {
		return exitNotFound
	}

	return exitFailed
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the engine configuration file",
			Value:   "forgeflow.yaml",
			Sources: cli.EnvVars("FORGEFLOW_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, pretty)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// engine bundles everything a command needs.
type engine struct {
	cfg          config.Config
	logger       *slog.Logger
	store        *file.Persistence
	trail        *audit.FileTrail
	environments *environment.Manager
	orchestrator *workflow.Orchestrator
}

// newEngine builds the engine from the command's flags. The toolchain is
// the simulated one; real collaborators plug in through the same
// interfaces.
func newEngine(ctx context.Context, command *cli.Command, module string) (*engine, error) {
	log.Setup(command.String("log-level"), command.String("log-format"))

	cfg := config.LoadOrDefault(command.String("config"))
	logger := log.WithModule(module)

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, err
	}

	store := file.NewPersistence(cfg.DataDir)

	trail, err := audit.NewFileTrail(cfg.AuditDir)
	if err != nil {
		return nil, err
	}

	environments := environment.NewManager(cfg.EnvironmentsDir)

	executor := workflow.NewExecutor(simulated.NewToolchain(nil), cfg.ToolTimeout.Std(), logger)

	// Tracing is opt-in via the standard OTLP environment variables.
	var tracer trace.Tracer

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tracer, err = otelhelper.NewTracer(ctx, module)
		if err != nil {
			return nil, err
		}
	}

	orchestrator := workflow.NewOrchestrator(
		executor,
		store,
		trail,
		environments,
		nil, // no event bus observers in the CLI
		tracer,
		logger,
		cfg.MaxRetries,
		filepath.Join(cfg.DataDir, "diagnostics"),
	)

	return &engine{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		trail:        trail,
		environments: environments,
		orchestrator: orchestrator,
	}, nil
}
