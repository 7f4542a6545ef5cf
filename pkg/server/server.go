// Package server exposes the chatbot over HTTP: the messaging-gateway
// webhook plus a small JSON API for direct chat, session inspection,
// and service status. Webhook processing happens off the request path
// so the gateway is never blocked on generation latency.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shirayu/docent/pkg/adapter"
	"github.com/shirayu/docent/pkg/usecase/chatbot"
	"github.com/shirayu/docent/pkg/utils/logging"
	"github.com/shirayu/docent/pkg/utils/retry"
)

const shutdownGrace = 10 * time.Second

// ChunkCounter reports how many chunks the vector index holds, for the
// status endpoint. Optional.
type ChunkCounter func(ctx context.Context) (uint64, error)

// Server routes HTTP traffic to the chatbot use case.
type Server struct {
	addr string
	chat *chatbot.UseCase
	mux  *http.ServeMux

	messenger  adapter.Messenger // nil when no gateway is configured
	countFunc  ChunkCounter
	limiter    *senderLimiter
	sweepEvery time.Duration

	startedAt time.Time
	inflight  sync.WaitGroup
}

// Option is a functional option for Server.
type Option func(*Server)

// WithMessenger enables reply delivery through the messaging gateway.
func WithMessenger(m adapter.Messenger) Option {
	return func(s *Server) {
		s.messenger = m
	}
}

// WithChunkCounter adds an indexed-chunk count to the status endpoint.
func WithChunkCounter(fn ChunkCounter) Option {
	return func(s *Server) {
		s.countFunc = fn
	}
}

// WithWebhookRateLimit caps webhook messages per sender per window.
func WithWebhookRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		if limit > 0 && window > 0 {
			s.limiter = newSenderLimiter(limit, window)
		}
	}
}

// WithPeriodicSweep runs a background session sweep at the given
// interval, bounding memory even when no messages arrive.
func WithPeriodicSweep(interval time.Duration) Option {
	return func(s *Server) {
		s.sweepEvery = interval
	}
}

// New creates the server and registers all routes.
func New(addr string, chat *chatbot.UseCase, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		chat:      chat,
		mux:       http.NewServeMux(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /webhook/whatsapp", s.handleWebhook)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/conversation/{user}", s.handleConversation)
	s.mux.HandleFunc("DELETE /api/conversation/{user}", s.handleClear)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	return s
}

// Handler returns the route handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully and
// waits for in-flight webhook work to finish.
func (s *Server) Run(ctx context.Context) error {
	logger := logging.From(ctx)

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.sweepEvery > 0 {
		go s.sweepLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return goerr.Wrap(err, "http server failed")

	case <-ctx.Done():
		logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "http server shutdown failed")
		}

		s.inflight.Wait()
		return nil
	}
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.chat.Sweep(); removed > 0 {
				logging.From(ctx).Debug("periodic sweep removed sessions", "removed", removed)
			}
		}
	}
}

// deliver sends the reply through the gateway with retries. Failures
// are logged, never surfaced: the exchange is already recorded.
func (s *Server) deliver(ctx context.Context, to, body string) {
	if s.messenger == nil {
		logging.From(ctx).Warn("no messaging gateway configured, dropping reply", "to", to)
		return
	}

	err := retry.Do(ctx, retry.Default, func(ctx context.Context) error {
		return s.messenger.Send(ctx, to, body)
	})
	if err != nil {
		logging.From(ctx).Error("failed to deliver reply", "to", to, "error", err)
		return
	}

	logging.From(ctx).Info("reply delivered", "to", to)
}
