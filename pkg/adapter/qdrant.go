package adapter

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/qdrant/go-client/qdrant"
	"github.com/shirayu/docent/pkg/model"
)

// VectorIndex is the similarity-search backend holding document chunks.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, limit int) ([]model.RetrievedChunk, error)
	Upsert(ctx context.Context, chunks []model.DocumentChunk, vectors [][]float32) error
	EnsureCollection(ctx context.Context, dims uint64) error
	Count(ctx context.Context) (uint64, error)
}

// QdrantConfig holds connection settings for a Qdrant deployment.
type QdrantConfig struct {
	// URL is the server address, e.g. "https://example.qdrant.io:6334".
	// A missing scheme defaults to https, a missing port to 6334 (gRPC).
	URL        string
	Collection string
	APIKey     string
}

type QdrantClient struct {
	client     *qdrant.Client
	collection string
}

func NewQdrant(cfg QdrantConfig) (*QdrantClient, error) {
	if cfg.URL == "" {
		return nil, goerr.New("qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, goerr.New("qdrant collection is required")
	}

	raw := cfg.URL
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse qdrant url", goerr.V("url", cfg.URL))
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, goerr.Wrap(err, "invalid qdrant port", goerr.V("port", u.Port()))
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create qdrant client")
	}

	return &QdrantClient{
		client:     client,
		collection: cfg.Collection,
	}, nil
}

func (q *QdrantClient) Query(ctx context.Context, vector []float32, limit int) ([]model.RetrievedChunk, error) {
	lim := uint64(limit)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "qdrant query failed")
	}

	chunks := make([]model.RetrievedChunk, 0, len(points))
	for _, point := range points {
		chunk := model.RetrievedChunk{Score: float64(point.Score)}
		for key, value := range point.Payload {
			switch key {
			case "content":
				chunk.Text = value.GetStringValue()
			case "source":
				chunk.Source = value.GetStringValue()
			}
		}
		if chunk.Text == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

func (q *QdrantClient) Upsert(ctx context.Context, chunks []model.DocumentChunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return goerr.New("chunk and vector counts differ",
			goerr.V("chunks", len(chunks)), goerr.V("vectors", len(vectors)))
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(chunk.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content": chunk.Text,
				"source":  chunk.Source,
			}),
		}
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return goerr.Wrap(err, "qdrant upsert failed", goerr.V("points", len(points)))
	}

	return nil
}

func (q *QdrantClient) EnsureCollection(ctx context.Context, dims uint64) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return goerr.Wrap(err, "failed to check qdrant collection",
			goerr.V("collection", q.collection))
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create qdrant collection",
			goerr.V("collection", q.collection))
	}

	return nil
}

func (q *QdrantClient) Count(ctx context.Context) (uint64, error) {
	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
	})
	if err != nil {
		return 0, goerr.Wrap(err, "qdrant count failed")
	}
	return count, nil
}

func (q *QdrantClient) Close() error {
	return q.client.Close()
}
