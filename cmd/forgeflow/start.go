package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/quendro/forgeflow/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func NewStartCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:     "request",
			Aliases:  []string{"r"},
			Usage:    "Natural-language description of the artifact to build",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "network",
			Usage:   "Target network for deployment",
			Sources: cli.EnvVars("FORGEFLOW_NETWORK"),
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Artifact name hint passed to the generator",
		},
		&cli.StringFlag{
			Name:  "constructor-args",
			Usage: "Constructor arguments as a JSON object",
		},
		&cli.StringFlag{
			Name:  "args-schema",
			Usage: "Path to a JSON schema validating the constructor arguments",
		},
	)

	return &cli.Command{
		Name:    "start",
		Aliases: []string{"s"},
		Usage:   "Start a workflow and drive it to completion",
		Flags:   flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			eng, err := newEngine(ctx, command, "forgeflow")
			if err != nil {
				return err
			}

			request := models.WorkflowRequest{
				UserRequest:  command.String("request"),
				Network:      command.String("network"),
				ArtifactName: command.String("name"),
			}

			if request.Network == "" {
				request.Network = eng.cfg.Network
			}

			if raw := command.String("constructor-args"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &request.ConstructorArgs); err != nil {
					return cli.Exit(fmt.Sprintf("invalid constructor args: %v", err), exitFailed)
				}
			}

			if path := command.String("args-schema"); path != "" {
				schema, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
				if err != nil {
					return cli.Exit(fmt.Sprintf("read args schema: %v", err), exitFailed)
				}

				request.ArgsSchema = schema
			}

			wc, err := eng.orchestrator.Start(ctx, request)
			if wc != nil {
				printSummary(wc.Summary())
			}

			if err != nil {
				return cli.Exit(fmt.Sprintf("workflow failed: %v", err), exitFailed)
			}

			return nil
		},
	}
}

func printSummary(summary models.WorkflowSummary) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return
	}

	_, _ = fmt.Fprintln(os.Stdout, string(data))
}
