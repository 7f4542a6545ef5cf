package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg    config
		userID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID for the conversation session",
			Value:       "cli_user",
			Sources:     cli.EnvVars("DOCENT_CHAT_USER"),
			Destination: &userID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, qdrantFlags(&cfg)...)
	flags = append(flags, chatbotFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat with the documentation from the terminal",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx)
			if err != nil {
				return err
			}

			chat, index, err := cfg.newChatbot(ctx)
			if err != nil {
				return err
			}
			defer index.Close()

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			fmt.Fprintf(c.Root().Writer, "Chat session started. Type 'exit' to quit, 'clear' to reset the conversation.\n")

			for {
				line, err := rl.Readline()
				if err != nil { // io.EOF or readline.ErrInterrupt
					break
				}

				message := strings.TrimSpace(line)
				switch message {
				case "":
					continue
				case "exit", "quit":
					fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
					return nil
				case "clear":
					chat.Clear(userID)
					fmt.Fprintf(c.Root().Writer, "Conversation cleared\n")
					continue
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
					spinner.WithWriter(os.Stderr))
				sp.Suffix = " thinking..."
				sp.Start()
				resp := chat.Process(ctx, userID, message)
				sp.Stop()

				fmt.Fprintf(c.Root().Writer, "%s\n", resp.Text)
				if resp.Confidence != nil {
					fmt.Fprintf(c.Root().Writer, "  (confidence: %.2f", *resp.Confidence)
					if len(resp.Sources) > 0 {
						fmt.Fprintf(c.Root().Writer, ", sources: %s", strings.Join(resp.Sources, ", "))
					}
					fmt.Fprintf(c.Root().Writer, ")\n")
				}
			}

			fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
			return nil
		},
	}
}
