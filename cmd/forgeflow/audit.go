package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/quendro/forgeflow/pkg/audit"
	"github.com/quendro/forgeflow/pkg/events"
	cli "github.com/urfave/cli/v3"
)

func NewAuditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Inspect the cross-run audit trail",
		Commands: []*cli.Command{
			newAuditEventsCommand(),
			newAuditStatsCommand(),
		},
	}
}

func newAuditEventsCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:  "workflow-id",
			Usage: "Filter events to one workflow",
		},
		&cli.StringFlag{
			Name:  "type",
			Usage: "Filter by event type (e.g. stage.failed)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of events to show",
			Value: 20,
		},
	)

	return &cli.Command{
		Name:  "events",
		Usage: "List recent audit events, most recent first",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			eng, err := newEngine(ctx, command, "forgeflow-audit")
			if err != nil {
				return err
			}

			filter := audit.Filter{
				WorkflowID: command.String("workflow-id"),
				Type:       events.EventType(command.String("type")),
			}

			records, err := eng.trail.Query(filter, command.Int("limit"))
			if err != nil {
				return err
			}

			for _, record := range records {
				line, err := json.Marshal(record)
				if err != nil {
					continue
				}

				_, _ = fmt.Fprintln(os.Stdout, string(line))
			}

			return nil
		},
	}
}

func newAuditStatsCommand() *cli.Command {
	flags := append(commonFlags(),
		&cli.StringFlag{
			Name:  "workflow-id",
			Usage: "Scope statistics to one workflow",
		},
	)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show aggregate event counts and the success rate",
		Flags: flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			eng, err := newEngine(ctx, command, "forgeflow-audit")
			if err != nil {
				return err
			}

			stats, err := eng.trail.Statistics(command.String("workflow-id"))
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(os.Stdout, string(data))

			return nil
		},
	}
}
