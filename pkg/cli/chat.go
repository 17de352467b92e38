package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, qaFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive question answering session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			uc, err := cfg.newUseCase(ctx, nil)
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "? ",
				HistoryFile:     os.ExpandEnv("$HOME/.aurora_history"),
				InterruptPrompt: "^C",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			fmt.Fprintln(c.Root().Writer, "Ask about a member. Type 'exit' to quit.")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				question := strings.TrimSpace(line)
				if question == "" {
					continue
				}
				if question == "exit" || question == "quit" {
					return nil
				}

				s := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
					spinner.WithWriter(os.Stderr),
					spinner.WithSuffix(" thinking..."))
				s.Start()
				result, err := uc.Answer(ctx, question)
				s.Stop()

				if err != nil {
					fmt.Fprintf(c.Root().ErrWriter, "error: %v\n", err)
					continue
				}

				fmt.Fprintf(c.Root().Writer, "\n%s\n\n", result.Text)
			}
		},
	}
}
