package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shirayu/docent/pkg/usecase/ingest"
	"github.com/urfave/cli/v3"
)

func indexCommand() *cli.Command {
	var (
		cfg          config
		chunkSize    int64
		chunkOverlap int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "chunk-size",
			Usage:       "Maximum chunk length in runes",
			Value:       ingest.DefaultChunkSize,
			Sources:     cli.EnvVars("DOCENT_CHUNK_SIZE"),
			Destination: &chunkSize,
		},
		&cli.IntFlag{
			Name:        "chunk-overlap",
			Usage:       "Runes shared between neighboring chunks",
			Value:       ingest.DefaultChunkOverlap,
			Sources:     cli.EnvVars("DOCENT_CHUNK_OVERLAP"),
			Destination: &chunkOverlap,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)
	flags = append(flags, qdrantFlags(&cfg)...)

	return &cli.Command{
		Name:      "index",
		Usage:     "Chunk, embed, and index documentation files",
		ArgsUsage: "<file> [<file>...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setup(ctx)
			if err != nil {
				return err
			}

			paths := c.Args().Slice()
			if len(paths) == 0 {
				return goerr.New("at least one file is required")
			}

			uc, index, err := cfg.newIngest(ctx, chunkSize, chunkOverlap)
			if err != nil {
				return err
			}
			defer index.Close()

			total, err := uc.IngestFiles(ctx, paths)
			if err != nil {
				return goerr.Wrap(err, "failed to index documents")
			}

			count, err := uc.Count(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to count indexed chunks")
			}

			fmt.Fprintf(c.Root().Writer, "Indexed %d chunks from %d files (%d total in collection)\n",
				total, len(paths), count)
			return nil
		},
	}
}
