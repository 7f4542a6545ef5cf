package model

// RetrievedChunk is a fragment of indexed documentation returned by the
// retriever for a query. Chunks are ephemeral: they are used to build a
// single prompt and never stored.
type RetrievedChunk struct {
	Text   string
	Source string
	Score  float64
}

// DocumentChunk is a piece of a source document prepared for indexing.
type DocumentChunk struct {
	ID     string
	Text   string
	Source string
}
