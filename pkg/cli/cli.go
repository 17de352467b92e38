package cli

import (
	"context"

	"github.com/aurora-qa/aurora/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:    "aurora",
		Usage:   "Member memory question answering service",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			askCommand(),
			chatCommand(),
			ingestCommand(),
			indexCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
