package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aurora-qa/aurora/pkg/adapter"
	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/aurora-qa/aurora/pkg/usecase/qa"
	"github.com/aurora-qa/aurora/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func ingestCommand() *cli.Command {
	var (
		cfg         config
		messagesURL string
		memberID    string
		maxStored   int64
		throttle    time.Duration
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
			Name:        "member-id",
			Usage:       "Ingest only this member's messages",
			Sources:     cli.EnvVars("AURORA_MEMBER_ID"),
			Destination: &memberID,
		},
		&cli.IntFlag{
			Name:        "max",
			Usage:       "Stop after storing this many snippets (0 = no limit)",
			Sources:     cli.EnvVars("AURORA_INGEST_MAX"),
			Destination: &maxStored,
		},
		&cli.DurationFlag{
			Name:        "throttle",
			Usage:       "Pause between stored snippets",
			Sources:     cli.EnvVars("AURORA_INGEST_THROTTLE"),
			Destination: &throttle,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Fetch the message history and store it as memory snippets",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			messages, err := adapter.NewMessages(messagesURL).FetchAll(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to fetch message history")
			}

			policy := qa.DefaultPolicy()
			var stored, skipped int

			for _, msg := range messages {
				if msg.MemberID == "" || strings.TrimSpace(msg.Text) == "" {
					skipped++
					continue
				}
				if memberID != "" && string(msg.MemberID) != memberID {
					continue
				}

				snippet := snippetFromMessage(msg, policy)

				embedding, err := gemini.Embedding(ctx, snippet.Text)
				if err != nil {
					return goerr.Wrap(err, "failed to embed message", goerr.V("message", msg.ID))
				}
				snippet.Embedding = embedding

				if err := repo.PutSnippet(ctx, snippet); err != nil {
					return goerr.Wrap(err, "failed to store snippet", goerr.V("message", msg.ID))
				}

				stored++
				if stored%100 == 0 {
					logging.From(ctx).Info("ingest progress", "stored", stored)
				}
				if maxStored > 0 && int64(stored) >= maxStored {
					break
				}
				if throttle > 0 {
					select {
					case <-ctx.Done():
						return goerr.Wrap(ctx.Err(), "ingest canceled")
					case <-time.After(throttle):
					}
				}
			}

			logging.From(ctx).Info("ingest completed", "stored", stored, "skipped", skipped)
			fmt.Fprintf(c.Root().Writer, "stored %d snippets (%d skipped)\n", stored, skipped)
			return nil
		},
	}
}

// snippetFromMessage renders one message into its memory snippet form:
// the speaker and timestamp are folded into the text so the embedding
// captures them, and category tags are derived up front.
func snippetFromMessage(msg *model.Message, policy *qa.Policy) *model.MemorySnippet {
	id := model.SnippetID(msg.ID)
	if id == "" {
		id = model.NewSnippetID()
	}

	return &model.MemorySnippet{
		ID:         id,
		MemberID:   msg.MemberID,
		MemberName: msg.MemberName,
		MessageID:  msg.ID,
		Text:       fmt.Sprintf("%s says %s at %s", msg.MemberName, msg.Text, msg.Timestamp),
		Timestamp:  msg.ParseTimestamp(),
		Categories: policy.CategoryTags(msg.Text),
	}
}
