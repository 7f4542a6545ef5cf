package chatbot

import (
	"context"

	"github.com/shirayu/docent/pkg/model"
	"github.com/shirayu/docent/pkg/utils/logging"
)

const (
	unavailableText = "I'm sorry, but I'm currently not available. Please try again later."
	degradedText    = "I'm sorry, but I encountered an error while processing your message. Please try again."
)

// Process answers one user message. It never returns an error: external
// failures degrade into an apology response with zero confidence, and
// every path that reaches the pipeline records the exchange. Calls for
// the same user are serialized; calls for different users are not.
func (u *UseCase) Process(ctx context.Context, userID, message string) *model.Response {
	logger := logging.From(ctx).With("user_id", userID)

	if !u.Ready() {
		logger.Warn("message received before initialization completed")
		return model.NewResponse(unavailableText, 0.0, nil)
	}

	release := u.users.acquire(userID)
	defer release()

	history := lastN(u.store.GetHistory(userID), u.historyWindow)
	chunks := u.search(ctx, message)

	var resp *model.Response
	if len(chunks) == 0 {
		resp = u.respondFallback(ctx, message)
	} else {
		resp = u.respondGrounded(ctx, message, chunks, history)
	}

	u.store.Append(userID, message, resp.Text)

	// Amortized cleanup: each completed exchange pays for one sweep.
	if removed := u.store.SweepExpired(); removed > 0 {
		logger.Debug("swept expired sessions", "removed", removed)
	}

	if resp.Confidence != nil {
		logger.Info("answered message",
			"confidence", *resp.Confidence, "sources", len(resp.Sources))
	}
	return resp
}

// search queries the retriever with a bounded timeout. Failures are
// logged and treated the same as an empty result: no usable context.
func (u *UseCase) search(ctx context.Context, message string) []model.RetrievedChunk {
	sctx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()

	chunks, err := u.retriever.Search(sctx, message, u.retrievalK)
	if err != nil {
		logging.From(ctx).Warn("retrieval failed, continuing without context", "error", err)
		return nil
	}
	return chunks
}

// respondGrounded builds the context-grounded prompt, invokes the
// generator once, and scores the answer against the retrieved chunks.
func (u *UseCase) respondGrounded(ctx context.Context, message string, chunks []model.RetrievedChunk, history []model.Exchange) *model.Response {
	prompt, err := buildGroundedPrompt(chunks, history, message)
	if err != nil {
		logging.From(ctx).Error("failed to build grounded prompt", "error", err)
		return model.NewResponse(degradedText, 0.0, nil)
	}

	text, err := u.generate(ctx, prompt)
	if err != nil {
		logging.From(ctx).Error("generation failed", "error", err)
		return model.NewResponse(degradedText, 0.0, nil)
	}

	return assemble(text, Score(chunks, message), chunks)
}

// respondFallback answers without context, instructing the generator to
// admit missing information. Confidence is fixed at the fallback ceiling.
func (u *UseCase) respondFallback(ctx context.Context, message string) *model.Response {
	prompt, err := buildFallbackPrompt(message)
	if err != nil {
		logging.From(ctx).Error("failed to build fallback prompt", "error", err)
		return model.NewResponse(degradedText, 0.0, nil)
	}

	text, err := u.generate(ctx, prompt)
	if err != nil {
		logging.From(ctx).Error("fallback generation failed", "error", err)
		return model.NewResponse(degradedText, 0.0, nil)
	}

	return assemble(text, FallbackConfidence, nil)
}

func (u *UseCase) generate(ctx context.Context, prompt string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()
	return u.generator.GenerateText(gctx, prompt)
}
