package main

import (
	"context"
	"fmt"

	"github.com/quendro/forgeflow/pkg/persistence"
	cli "github.com/urfave/cli/v3"
)

func NewResumeCommand() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Reload a workflow's last snapshot and continue from its current stage",
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

			wc, err := eng.orchestrator.Resume(ctx, workflowID)
			if wc != nil {
				printSummary(wc.Summary())
			}

			if err != nil {
				if persistence.IsContextNotFound(err) {
					return cli.Exit(fmt.Sprintf("workflow %s not found", workflowID), exitNotFound)
				}

				return cli.Exit(fmt.Sprintf("workflow failed: %v", err), exitFailed)
			}

			return nil
		},
	}
}
