package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/aurora-qa/aurora/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg      config
		question string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "question",
			Aliases:     []string{"q"},
			Usage:       "Question about a member",
			Sources:     cli.EnvVars("AURORA_QUESTION"),
			Destination: &question,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, qaFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single question about a member",
		ArgsUsage: "[question]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			q := question
			if q == "" {
				q = strings.Join(c.Args().Slice(), " ")
			}
			if strings.TrimSpace(q) == "" {
				return goerr.New("question is required (flag or argument)")
			}

			uc, err := cfg.newUseCase(ctx, c.Root().ErrWriter)
			if err != nil {
				return err
			}

			result, err := uc.Answer(ctx, q)
			if err != nil {
				return goerr.Wrap(err, "failed to answer question")
			}

			logging.Default().Debug("question answered",
				"iterations", result.Iterations,
				"member", result.MemberID,
				"exhausted", result.Exhausted)

			fmt.Fprintln(c.Root().Writer, result.Text)
			return nil
		},
	}
}
