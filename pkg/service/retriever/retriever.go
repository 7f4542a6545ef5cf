// Package retriever turns a natural-language query into the document
// chunks most relevant to it, by embedding the query and running a
// similarity search against the vector index.
package retriever

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shirayu/docent/pkg/adapter"
	"github.com/shirayu/docent/pkg/model"
)

// Retriever finds chunks relevant to a query. Both an error and an
// empty result mean "no usable context" to the caller.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]model.RetrievedChunk, error)
}

// Embedder is the slice of the Gemini adapter the retriever needs.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	embedder Embedder
	index    adapter.VectorIndex
	minScore float64
}

type Option func(*Service)

// WithMinScore drops results scoring below the threshold.
func WithMinScore(score float64) Option {
	return func(s *Service) {
		s.minScore = score
	}
}

func New(embedder Embedder, index adapter.VectorIndex, opts ...Option) *Service {
	s := &Service{
		embedder: embedder,
		index:    index,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Search(ctx context.Context, query string, k int) ([]model.RetrievedChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embedding(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	chunks, err := s.index.Query(ctx, vector, k)
	if err != nil {
		return nil, goerr.Wrap(err, "vector search failed")
	}

	if s.minScore <= 0 {
		return chunks, nil
	}

	filtered := chunks[:0]
	for _, chunk := range chunks {
		if chunk.Score >= s.minScore {
			filtered = append(filtered, chunk)
		}
	}
	return filtered, nil
}
