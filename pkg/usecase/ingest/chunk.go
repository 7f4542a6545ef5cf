package ingest

import "strings"

// splitText cuts text into overlapping windows of at most size runes.
// Overlap keeps sentences that straddle a boundary available in both
// neighboring chunks. Whitespace-only chunks are dropped.
func splitText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// SplitTextForTest is a test helper that exposes splitText
func SplitTextForTest(text string, size, overlap int) []string {
	return splitText(text, size, overlap)
}
