package cli

import (
	"context"

	"github.com/aurora-qa/aurora/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, qaFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Expose member memory search as an MCP server on stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			uc, err := cfg.newUseCase(ctx, nil)
			if err != nil {
				return err
			}

			return mcp.Serve(ctx, uc, version)
		},
	}
}
