package cli

import (
	"context"
	"fmt"

	"github.com/aurora-qa/aurora/pkg/adapter"
	"github.com/aurora-qa/aurora/pkg/roster"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func indexCommand() *cli.Command {
	var (
		cfg         config
		messagesURL string
		output      string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "messages-url",
			Usage:       "Base URL of the message history API",
			Sources:     cli.EnvVars("AURORA_MESSAGES_URL"),
			Destination: &messagesURL,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Roster destination (local path or gs://bucket/key)",
			Value:       "roster.json",
			Sources:     cli.EnvVars("AURORA_ROSTER_OUTPUT"),
			Destination: &output,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "index",
		Usage: "Build the member roster from the message history",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			messages, err := adapter.NewMessages(messagesURL).FetchAll(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to fetch message history")
			}

			members := roster.Build(messages)
			if len(members) == 0 {
				return goerr.New("no members found in message history")
			}

			w, err := cfg.openRosterWriter(ctx, output)
			if err != nil {
				return err
			}

			if err := roster.Save(w, members); err != nil {
				_ = w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return goerr.Wrap(err, "failed to finalize roster", goerr.V("output", output))
			}

			fmt.Fprintf(c.Root().Writer, "wrote %d members to %s\n", len(members), output)
			return nil
		},
	}
}
