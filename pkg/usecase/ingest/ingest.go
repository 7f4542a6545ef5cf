// Package ingest prepares documentation files for retrieval: it chunks
// their text, embeds each chunk, and upserts the vectors into the index.
package ingest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shirayu/docent/pkg/adapter"
	"github.com/shirayu/docent/pkg/model"
	"github.com/shirayu/docent/pkg/service/retriever"
	"github.com/shirayu/docent/pkg/utils/logging"
	"github.com/shirayu/docent/pkg/utils/retry"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// upsertBatch bounds the number of points per index write.
	upsertBatch = 64
)

// UseCase indexes documents into the vector store.
type UseCase struct {
	embedder retriever.Embedder
	index    adapter.VectorIndex

	chunkSize    int
	chunkOverlap int
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithChunkSize sets the maximum chunk length in runes.
func WithChunkSize(n int) Option {
	return func(u *UseCase) {
		if n > 0 {
			u.chunkSize = n
		}
	}
}

// WithChunkOverlap sets how many runes neighboring chunks share.
func WithChunkOverlap(n int) Option {
	return func(u *UseCase) {
		if n >= 0 {
			u.chunkOverlap = n
		}
	}
}

// New creates an ingest UseCase instance
func New(embedder retriever.Embedder, index adapter.VectorIndex, opts ...Option) *UseCase {
	u := &UseCase{
		embedder:     embedder,
		index:        index,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// IngestFiles indexes the given text or markdown files and returns the
// number of chunks written. The chunk source is the file's base name,
// which later surfaces in Response.Sources.
func (u *UseCase) IngestFiles(ctx context.Context, paths []string) (int, error) {
	logger := logging.From(ctx)

	total := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return total, goerr.Wrap(err, "failed to read document", goerr.V("path", path))
		}

		n, err := u.ingestDocument(ctx, filepath.Base(path), string(data))
		if err != nil {
			return total, goerr.Wrap(err, "failed to ingest document", goerr.V("path", path))
		}

		logger.Info("indexed document", "path", path, "chunks", n)
		total += n
	}

	return total, nil
}

func (u *UseCase) ingestDocument(ctx context.Context, source, text string) (int, error) {
	texts := splitText(text, u.chunkSize, u.chunkOverlap)
	if len(texts) == 0 {
		return 0, nil
	}

	chunks := make([]model.DocumentChunk, len(texts))
	vectors := make([][]float32, len(texts))
	for i, chunkText := range texts {
		vector, err := u.embedder.Embedding(ctx, chunkText)
		if err != nil {
			return 0, goerr.Wrap(err, "failed to embed chunk",
				goerr.V("source", source), goerr.V("chunk", i))
		}
		chunks[i] = model.DocumentChunk{
			ID:     uuid.New().String(),
			Text:   chunkText,
			Source: source,
		}
		vectors[i] = vector
	}

	if err := u.index.EnsureCollection(ctx, uint64(len(vectors[0]))); err != nil {
		return 0, err
	}

	for start := 0; start < len(chunks); start += upsertBatch {
		end := start + upsertBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		batchVectors := vectors[start:end]

		err := retry.Do(ctx, retry.Default, func(ctx context.Context) error {
			return u.index.Upsert(ctx, batch, batchVectors)
		})
		if err != nil {
			return 0, goerr.Wrap(err, "failed to upsert chunks", goerr.V("source", source))
		}
	}

	return len(chunks), nil
}

// Count reports how many chunks the index currently holds.
func (u *UseCase) Count(ctx context.Context) (uint64, error) {
	return u.index.Count(ctx)
}
