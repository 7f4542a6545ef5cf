package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/shirayu/docent/pkg/model"
	"github.com/shirayu/docent/pkg/usecase/ingest"
)

func TestSplitText(t *testing.T) {
	t.Run("short text stays whole", func(t *testing.T) {
		chunks := ingest.SplitTextForTest("a short document", 1000, 200)
		gt.A(t, chunks).Length(1)
		gt.V(t, chunks[0]).Equal("a short document")
	})

	t.Run("empty input", func(t *testing.T) {
		gt.A(t, ingest.SplitTextForTest("", 1000, 200)).Length(0)
		gt.A(t, ingest.SplitTextForTest("   \n\t ", 1000, 200)).Length(0)
	})

	t.Run("long text overlaps", func(t *testing.T) {
		text := strings.Repeat("abcdefghij", 30) // 300 runes
		chunks := ingest.SplitTextForTest(text, 100, 20)

		gt.True(t, len(chunks) >= 3)
		for _, chunk := range chunks {
			gt.True(t, len([]rune(chunk)) <= 100)
		}

		// Consecutive chunks share their boundary region
		first := []rune(chunks[0])
		tail := string(first[len(first)-20:])
		gt.S(t, chunks[1]).Contains(tail[:10])
	})

	t.Run("multibyte runes are not split", func(t *testing.T) {
		text := strings.Repeat("こんにちは世界、", 50)
		chunks := ingest.SplitTextForTest(text, 64, 8)
		gt.True(t, len(chunks) > 1)
		for _, chunk := range chunks {
			gt.True(t, strings.ContainsRune(chunk, 'こ') || strings.ContainsRune(chunk, '世'))
		}
	})
}

type mockEmbedder struct {
	calls int
}

func (m *mockEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	return []float32{0.1, 0.2, 0.3}, nil
}

type mockIndex struct {
	ensured  uint64
	upserted []model.DocumentChunk
	count    uint64
	failures int
}

func (m *mockIndex) Query(ctx context.Context, vector []float32, limit int) ([]model.RetrievedChunk, error) {
	return nil, goerr.New("not implemented")
}

func (m *mockIndex) Upsert(ctx context.Context, chunks []model.DocumentChunk, vectors [][]float32) error {
	if m.failures > 0 {
		m.failures--
		return goerr.New("transient index failure")
	}
	m.upserted = append(m.upserted, chunks...)
	m.count += uint64(len(chunks))
	return nil
}

func (m *mockIndex) EnsureCollection(ctx context.Context, dims uint64) error {
	m.ensured = dims
	return nil
}

func (m *mockIndex) Count(ctx context.Context) (uint64, error) {
	return m.count, nil
}

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestFiles(t *testing.T) {
	embedder := &mockEmbedder{}
	index := &mockIndex{}
	uc := ingest.New(embedder, index, ingest.WithChunkSize(50), ingest.WithChunkOverlap(10))

	path := writeTempDoc(t, "product.md", strings.Repeat("product details ", 20))

	total, err := uc.IngestFiles(context.Background(), []string{path})
	gt.NoError(t, err)
	gt.True(t, total > 1)

	gt.V(t, index.ensured).Equal(uint64(3))
	gt.A(t, index.upserted).Length(total)
	gt.V(t, embedder.calls).Equal(total)

	for _, chunk := range index.upserted {
		gt.V(t, chunk.Source).Equal("product.md")
		gt.V(t, chunk.ID).NotEqual("")
	}

	count, err := uc.Count(context.Background())
	gt.NoError(t, err)
	gt.V(t, count).Equal(uint64(total))
}

func TestIngestFilesRetriesUpsert(t *testing.T) {
	embedder := &mockEmbedder{}
	index := &mockIndex{failures: 1}
	uc := ingest.New(embedder, index)

	path := writeTempDoc(t, "doc.txt", "tiny document")

	total, err := uc.IngestFiles(context.Background(), []string{path})
	gt.NoError(t, err)
	gt.V(t, total).Equal(1)
	gt.A(t, index.upserted).Length(1)
}

func TestIngestFilesMissingFile(t *testing.T) {
	uc := ingest.New(&mockEmbedder{}, &mockIndex{})

	_, err := uc.IngestFiles(context.Background(), []string{"/nonexistent/file.md"})
	gt.Error(t, err)
}

func TestIngestEmptyDocument(t *testing.T) {
	embedder := &mockEmbedder{}
	index := &mockIndex{}
	uc := ingest.New(embedder, index)

	path := writeTempDoc(t, "empty.txt", "   \n  ")

	total, err := uc.IngestFiles(context.Background(), []string{path})
	gt.NoError(t, err)
	gt.V(t, total).Equal(0)
	gt.V(t, embedder.calls).Equal(0)
}
