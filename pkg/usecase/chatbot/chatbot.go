// Package chatbot orchestrates one "answer a message" operation:
// session history, retrieval, generation, confidence scoring, and
// recording of the completed exchange.
package chatbot

import (
	"context"
	"time"

	"github.com/shirayu/docent/pkg/model"
	"github.com/shirayu/docent/pkg/service/retriever"
	"github.com/shirayu/docent/pkg/session"
)

const (
	// DefaultHistoryWindow is how many recent exchanges go into the prompt.
	DefaultHistoryWindow = 5
	// DefaultRetrievalK is how many chunks are requested per query.
	DefaultRetrievalK = 5
	// DefaultCallTimeout bounds each retrieval and generation call.
	DefaultCallTimeout = 60 * time.Second
)

// Generator is the slice of the Gemini adapter the orchestrator needs.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// UseCase wires the session store, the retriever, and the generator
// into the message-answering pipeline. Its public operations never
// return an error to the caller; every failure becomes a well-formed
// Response.
type UseCase struct {
	store     *session.Store
	retriever retriever.Retriever
	generator Generator

	historyWindow int
	retrievalK    int
	callTimeout   time.Duration

	users keyedLocks
}

// Option is a functional option for UseCase.
type Option func(*UseCase)

// WithHistoryWindow sets how many recent exchanges are fed to the prompt.
func WithHistoryWindow(n int) Option {
	return func(u *UseCase) {
		if n > 0 {
			u.historyWindow = n
		}
	}
}

// WithRetrievalK sets the retrieval breadth per query.
func WithRetrievalK(k int) Option {
	return func(u *UseCase) {
		if k > 0 {
			u.retrievalK = k
		}
	}
}

// WithCallTimeout bounds each external call (retrieval, generation).
func WithCallTimeout(d time.Duration) Option {
	return func(u *UseCase) {
		if d > 0 {
			u.callTimeout = d
		}
	}
}

// New creates the orchestrator. The retriever or generator may be nil
// when their back ends could not be constructed; Process then answers
// with a fixed unavailable response instead of failing.
func New(store *session.Store, rtr retriever.Retriever, gen Generator, opts ...Option) *UseCase {
	u := &UseCase{
		store:         store,
		retriever:     rtr,
		generator:     gen,
		historyWindow: DefaultHistoryWindow,
		retrievalK:    DefaultRetrievalK,
		callTimeout:   DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Ready reports whether both external dependencies are available.
func (u *UseCase) Ready() bool {
	return u.retriever != nil && u.generator != nil
}

// Clear drops the user's conversation history.
func (u *UseCase) Clear(userID string) bool {
	return u.store.Clear(userID)
}

// Summary returns the user's session state for diagnostics.
func (u *UseCase) Summary(userID string) model.Summary {
	return u.store.Summary(userID)
}

// Status describes the orchestrator for health and status endpoints.
type Status struct {
	Initialized         bool `json:"initialized"`
	ActiveConversations int  `json:"active_conversations"`
}

// Status reports readiness and session load.
func (u *UseCase) Status() Status {
	return Status{
		Initialized:         u.Ready(),
		ActiveConversations: u.store.ActiveCount(),
	}
}

// Sweep removes expired sessions and returns how many were deleted.
// Exposed for callers that run their own periodic cleanup.
func (u *UseCase) Sweep() int {
	return u.store.SweepExpired()
}
