package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statusCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, qdrantFlags(&cfg)...)

	return &cli.Command{
		Name:  "status",
		Usage: "Show the state of the vector index",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx)
			if err != nil {
				return err
			}

			index, err := cfg.newVectorIndex()
			if err != nil {
				return err
			}
			defer index.Close()

			count, err := index.Count(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to query vector index")
			}

			fmt.Fprintf(c.Root().Writer, "Collection: %s\n", cfg.qdrantCollection)
			fmt.Fprintf(c.Root().Writer, "Indexed chunks: %d\n", count)
			return nil
		},
	}
}
