package chatbot_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/shirayu/docent/pkg/model"
	"github.com/shirayu/docent/pkg/usecase/chatbot"
)

func TestScoreEmptyChunks(t *testing.T) {
	gt.V(t, chatbot.Score(nil, "anything")).Equal(0.0)
	gt.V(t, chatbot.Score([]model.RetrievedChunk{}, "anything")).Equal(0.0)
}

func TestScoreKeywordOverlap(t *testing.T) {
	// Two chunks: base = min(0.8, 0.3 + 0.1*2) = 0.5. Both chunks
	// mention "refund", so overlap >= 1 and boost >= 0.02.
	chunks := []model.RetrievedChunk{
		{Text: "Refund requests are accepted within 30 days", Source: "manual.pdf"},
		{Text: "The refund policy applies to all products", Source: "faq.pdf"},
	}

	score := chatbot.Score(chunks, "refund policy")
	gt.True(t, score >= 0.52)
	gt.True(t, score <= 0.7)
}

func TestScoreDeterministic(t *testing.T) {
	chunks := []model.RetrievedChunk{
		{Text: "warranty covers two years", Source: "a"},
		{Text: "extended warranty available", Source: "b"},
		{Text: "warranty exclusions apply", Source: "c"},
	}

	first := chatbot.Score(chunks, "how long is the warranty")
	for i := 0; i < 10; i++ {
		gt.V(t, chatbot.Score(chunks, "how long is the warranty")).Equal(first)
	}
}

func TestScoreBounds(t *testing.T) {
	testCases := []struct {
		name   string
		chunks []model.RetrievedChunk
		query  string
	}{
		{
			name:   "single chunk no overlap",
			chunks: []model.RetrievedChunk{{Text: "alpha beta"}},
			query:  "gamma delta",
		},
		{
			name: "many chunks full overlap",
			chunks: func() []model.RetrievedChunk {
				chunks := make([]model.RetrievedChunk, 20)
				for i := range chunks {
					chunks[i] = model.RetrievedChunk{
						Text: "the quick brown fox jumps over the lazy dog " + fmt.Sprint(i),
					}
				}
				return chunks
			}(),
			query: "the quick brown fox jumps over the lazy dog",
		},
		{
			name:   "huge query",
			chunks: []model.RetrievedChunk{{Text: strings.Repeat("word ", 1000)}},
			query:  strings.Repeat("word ", 1000),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			score := chatbot.Score(tc.chunks, tc.query)
			gt.True(t, score >= 0.0)
			gt.True(t, score <= 0.95)
		})
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	chunks := []model.RetrievedChunk{{Text: "REFUND POLICY DETAILS"}}

	lower := chatbot.Score(chunks, "refund policy")
	upper := chatbot.Score(chunks, "REFUND POLICY")
	gt.V(t, lower).Equal(upper)

	// The overlap boost is present: strictly above the 1-chunk base of 0.4.
	gt.True(t, lower > 0.4)
}
