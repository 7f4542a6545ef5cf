package chatbot

import (
	"sort"
	"strings"

	"github.com/shirayu/docent/pkg/model"
)

// assemble shapes generator output into the response contract: text is
// whitespace-trimmed, sources are deduplicated and sorted so that equal
// source sets compare equal. No business logic beyond shaping.
func assemble(text string, confidence float64, chunks []model.RetrievedChunk) *model.Response {
	return model.NewResponse(strings.TrimSpace(text), confidence, sourcesOf(chunks))
}

func sourcesOf(chunks []model.RetrievedChunk) []string {
	if len(chunks) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		source := chunk.Source
		if source == "" {
			source = "Unknown"
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}
