package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mintdesk/mintdesk/client"
)

// newClient builds the API client from the global --server-url flag. Command
// output goes to stdout; only errors are logged, to stderr.
func newClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func createMintCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-mint",
		Usage: "Create a new fungible token mint",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "decimals",
				Usage: "Decimal precision of the mint (0-9)",
				Value: 9,
			},
		},
		Action: func(c *cli.Context) error {
			decimals := c.Uint("decimals")
			if decimals > 255 {
				return fmt.Errorf("decimals out of range")
			}
			result, err := newClient(c).CreateMint(c.Context, uint8(decimals))
			if err != nil {
				return err
			}
			return printOutput(c, result)
		},
	}
}

func mintCommand() *cli.Command {
	return &cli.Command{
		Name:  "mint",
		Usage: "Mint supply into the service wallet's token account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "mint",
				Usage:    "Mint address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "Amount in whole tokens (e.g. 10 or 2.5)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			result, err := newClient(c).MintTo(c.Context, c.String("mint"), c.String("amount"))
			if err != nil {
				return err
			}
			return printOutput(c, result)
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send tokens to a recipient wallet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "mint",
				Usage:    "Mint address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "recipient",
				Usage:    "Recipient wallet address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "Amount in whole tokens",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			result, err := newClient(c).Transfer(
				c.Context, c.String("mint"), c.String("recipient"), c.String("amount"))
			if err != nil {
				return err
			}
			return printOutput(c, result)
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show a wallet's native SOL balance",
		ArgsUsage: "ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one address argument")
			}
			result, err := newClient(c).Balance(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printOutput(c, result)
		},
	}
}

func tokenBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "token-balance",
		Usage: "Show an owner's balance for a mint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "mint",
				Usage:    "Mint address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "owner",
				Usage:    "Owner wallet address",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			result, err := newClient(c).TokenBalance(c.Context, c.String("mint"), c.String("owner"))
			if err != nil {
				return err
			}
			return printOutput(c, result)
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recent transactions for an address, newest first",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum entries (server default when omitted)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one address argument")
			}
			entries, err := newClient(c).History(c.Context, c.Args().First(), c.Int("limit"))
			if err != nil {
				return err
			}
			return printOutput(c, entries)
		},
	}
}

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:  "airdrop",
		Usage: "Request devnet SOL for an address",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Recipient wallet address",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "sol",
				Usage: "Amount of SOL to request",
				Value: "1",
			},
		},
		Action: func(c *cli.Context) error {
			result, err := newClient(c).Airdrop(c.Context, c.String("address"), c.String("sol"))
			if err != nil {
				return err
			}
			return printOutput(c, result)
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check the server's health endpoint",
		Action: func(c *cli.Context) error {
			if err := newClient(c).Health(c.Context); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}
