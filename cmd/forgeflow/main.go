package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:                  "forgeflow",
		Usage:                 "Run artifact pipelines from natural-language requests",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewStartCommand(),
			NewStatusCommand(),
			NewResumeCommand(),
			NewAuditCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		os.Exit(exitCode(err))
	}
}
