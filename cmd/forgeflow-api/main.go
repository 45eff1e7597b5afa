package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/quendro/forgeflow/pkg/audit"
	"github.com/quendro/forgeflow/pkg/config"
	"github.com/quendro/forgeflow/pkg/environment"
	"github.com/quendro/forgeflow/pkg/eventbus"
	"github.com/quendro/forgeflow/pkg/log"
	"github.com/quendro/forgeflow/pkg/metrics"
	"github.com/quendro/forgeflow/pkg/persistence/file"
	"github.com/quendro/forgeflow/pkg/tools/simulated"
	"github.com/quendro/forgeflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:                  "forgeflow-api",
		Usage:                 "Serve workflow status, audit events and metrics over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file",
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
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))
			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing ForgeFlow API")

			cfg := config.LoadOrDefault(command.String("config"))

			if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
				return err
			}

			store := file.NewPersistence(cfg.DataDir)

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			trail, err := audit.NewFileTrail(cfg.AuditDir)
			if err != nil {
				return err
			}

			defer func() {
				if err := trail.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close audit trail", "error", err)
				}
			}()

			bus := eventbus.NewGoChannelEventBus(logger)
			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			collector := metrics.NewCollector()
			collector.Observe(bus)

			if err := bus.Subscribe(ctx); err != nil {
				return err
			}

			// Runs started over HTTP publish on the same bus the
			// collector observes, so /metrics reflects them.
			environments := environment.NewManager(cfg.EnvironmentsDir)
			executor := workflow.NewExecutor(simulated.NewToolchain(nil), cfg.ToolTimeout.Std(), logger)
			orchestrator := workflow.NewOrchestrator(
				executor,
				store,
				trail,
				environments,
				bus,
				nil, // noop tracer
				logger,
				cfg.MaxRetries,
				filepath.Join(cfg.DataDir, "diagnostics"),
			)

			api := NewAPI(logger, store, trail, collector, orchestrator)

			return api.Start(command.Int("port"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
