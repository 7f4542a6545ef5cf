package chatbot

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shirayu/docent/pkg/model"
)

//go:embed prompt/grounded.md
var groundedPromptRaw string

//go:embed prompt/fallback.md
var fallbackPromptRaw string

var (
	groundedPromptTmpl = template.Must(template.New("grounded").Parse(groundedPromptRaw))
	fallbackPromptTmpl = template.Must(template.New("fallback").Parse(fallbackPromptRaw))
)

// noHistoryMarker is inserted into the prompt when the user has no
// prior exchanges within the session window.
const noHistoryMarker = "No previous conversation."

// formatHistory renders exchanges as alternating Human/Assistant turns.
// It takes an immutable snapshot and has no coupling to the store.
func formatHistory(exchanges []model.Exchange) string {
	if len(exchanges) == 0 {
		return noHistoryMarker
	}

	lines := make([]string, 0, len(exchanges)*2)
	for _, ex := range exchanges {
		lines = append(lines, "Human: "+ex.Human)
		lines = append(lines, "Assistant: "+ex.Assistant)
	}
	return strings.Join(lines, "\n")
}

// lastN returns the newest n exchanges, preserving order.
func lastN(exchanges []model.Exchange, n int) []model.Exchange {
	if n <= 0 || len(exchanges) <= n {
		return exchanges
	}
	return exchanges[len(exchanges)-n:]
}

// chunkContext concatenates chunk texts into the prompt context block.
func chunkContext(chunks []model.RetrievedChunk) string {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	return strings.Join(texts, "\n\n")
}

func buildGroundedPrompt(chunks []model.RetrievedChunk, history []model.Exchange, question string) (string, error) {
	var buf bytes.Buffer
	err := groundedPromptTmpl.Execute(&buf, map[string]string{
		"Context":  chunkContext(chunks),
		"History":  formatHistory(history),
		"Question": question,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to execute grounded prompt template")
	}
	return buf.String(), nil
}

func buildFallbackPrompt(question string) (string, error) {
	var buf bytes.Buffer
	err := fallbackPromptTmpl.Execute(&buf, map[string]string{
		"Question": question,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to execute fallback prompt template")
	}
	return buf.String(), nil
}

// FormatHistoryForTest is a test helper that exposes formatHistory
func FormatHistoryForTest(exchanges []model.Exchange) string {
	return formatHistory(exchanges)
}

// BuildGroundedPromptForTest is a test helper that exposes buildGroundedPrompt
func BuildGroundedPromptForTest(chunks []model.RetrievedChunk, history []model.Exchange, question string) (string, error) {
	return buildGroundedPrompt(chunks, history, question)
}

// BuildFallbackPromptForTest is a test helper that exposes buildFallbackPrompt
func BuildFallbackPromptForTest(question string) (string, error) {
	return buildFallbackPrompt(question)
}
