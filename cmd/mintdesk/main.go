package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "mintdesk",
		Usage: "Solana token service CLI",
		Description: `A command-line tool for the mintdesk token service.

Create mints, mint supply, send tokens, and inspect balances and history
through the service API.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			createMintCommand(),
			mintCommand(),
			sendCommand(),
			balanceCommand(),
			tokenBalanceCommand(),
			historyCommand(),
			airdropCommand(),
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Token service URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "Filter JSON output through a jq expression",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
