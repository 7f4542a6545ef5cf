package chatbot

import (
	"math"
	"strings"

	"github.com/shirayu/docent/pkg/model"
)

const (
	// FallbackConfidence is the fixed ceiling when no context was found.
	FallbackConfidence = 0.3

	maxConfidence     = 0.95
	neutralConfidence = 0.5
)

// Score estimates how well the retrieved chunks support an answer to
// the query. Deterministic and side-effect free: the result only grows
// with the number of chunks and the lexical overlap between query and
// chunk texts, and is capped at 0.95. Empty chunks score exactly 0.
func Score(chunks []model.RetrievedChunk, query string) (score float64) {
	// A scoring bug must never break an answer; fall back to neutral.
	defer func() {
		if recover() != nil {
			score = neutralConfidence
		}
	}()

	if len(chunks) == 0 {
		return 0.0
	}

	base := math.Min(0.8, 0.3+0.1*float64(len(chunks)))

	queryWords := tokenize(query)
	docWords := make(map[string]struct{})
	for _, chunk := range chunks {
		for word := range tokenize(chunk.Text) {
			docWords[word] = struct{}{}
		}
	}

	overlap := 0
	for word := range queryWords {
		if _, ok := docWords[word]; ok {
			overlap++
		}
	}
	boost := math.Min(0.2, 0.02*float64(overlap))

	return math.Min(maxConfidence, base+boost)
}

func tokenize(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		words[field] = struct{}{}
	}
	return words
}
