package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/shirayu/docent/pkg/server"
	"github.com/shirayu/docent/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg           config
		addr          string
		rateLimit     int64
		rateWindow    time.Duration
		sweepInterval time.Duration
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       ":8080",
			Sources:     cli.EnvVars("DOCENT_ADDR"),
			Destination: &addr,
		},
		&cli.IntFlag{
			Name:        "rate-limit",
			Usage:       "Webhook messages allowed per sender per window (0 disables)",
			Value:       10,
			Sources:     cli.EnvVars("DOCENT_RATE_LIMIT"),
			Destination: &rateLimit,
		},
		&cli.DurationFlag{
			Name:        "rate-window",
			Usage:       "Window for the webhook rate limit",
			Value:       time.Minute,
			Sources:     cli.EnvVars("DOCENT_RATE_WINDOW"),
			Destination: &rateWindow,
		},
		&cli.DurationFlag{
			Name:        "sweep-interval",
			Usage:       "Interval for background session cleanup (0 disables)",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("DOCENT_SWEEP_INTERVAL"),
			Destination: &sweepInterval,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, qdrantFlags(&cfg)...)
	flags = append(flags, twilioFlags(&cfg)...)
	flags = append(flags, chatbotFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server with the webhook and chat API",
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

			messenger, err := cfg.newMessenger()
			if err != nil {
				return err
			}
			if messenger == nil {
				logging.From(ctx).Warn("no messaging gateway configured, webhook replies will be dropped")
			}

			opts := []server.Option{
				server.WithMessenger(messenger),
				server.WithChunkCounter(index.Count),
				server.WithWebhookRateLimit(int(rateLimit), rateWindow),
				server.WithPeriodicSweep(sweepInterval),
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.New(addr, chat, opts...).Run(ctx)
		},
	}
}
