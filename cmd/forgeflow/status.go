package main

import (
	"context"
	"fmt"

	"github.com/quendro/forgeflow/pkg/persistence"
	cli "github.com/urfave/cli/v3"
)

func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the status summary of a workflow",
		ArgsUsage: "<workflow-id>",
		Flags:     commonFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			workflowID := command.Args().First()
			if workflowID == "" {
				return cli.Exit("workflow id is required", exitFailed)
			}

			eng, err := newEngine(ctx, command, "forgeflow")
			if err != nil {
				return err
			}

			summary, err := eng.orchestrator.Status(ctx, workflowID)
			if err != nil {
				if persistence.IsContextNotFound(err) {
					return cli.Exit(fmt.Sprintf("workflow %s not found", workflowID), exitNotFound)
				}

				return err
			}

			printSummary(summary)

			return nil
		},
	}
}
