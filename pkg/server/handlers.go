package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirayu/docent/pkg/model"
	"github.com/shirayu/docent/pkg/utils/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "docent",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.chat.Status()

	code := http.StatusOK
	health := "healthy"
	if !status.Initialized {
		code = http.StatusServiceUnavailable
		health = "unhealthy"
	}

	writeJSON(w, code, map[string]any{
		"status":               health,
		"initialized":          status.Initialized,
		"active_conversations": status.ActiveConversations,
	})
}

// handleWebhook accepts the Twilio form callback. It acknowledges
// immediately and answers in the background; Twilio only needs an
// empty 200 within its own timeout.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	msg := model.InboundMessage{
		SID:        r.PostFormValue("MessageSid"),
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		Body:       r.PostFormValue("Body"),
		ReceivedAt: time.Now(),
	}
	if msg.From == "" || msg.Body == "" {
		http.Error(w, "invalid message format", http.StatusBadRequest)
		return
	}

	if !s.limiter.Allow(msg.From) {
		logging.From(r.Context()).Warn("webhook rate limit exceeded", "from", msg.From)
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	// Detach from the request context: processing outlives this handler.
	bgCtx := logging.With(context.Background(), logging.From(r.Context()))

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		resp := s.chat.Process(bgCtx, msg.From, msg.Body)
		s.deliver(bgCtx, msg.From, resp.Text)
	}()

	w.WriteHeader(http.StatusOK)
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "missing message", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = "test_user"
	}

	resp := s.chat.Process(r.Context(), req.UserID, req.Message)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chat.Summary(r.PathValue("user")))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": s.chat.Clear(user),
		"user_id": user,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"chatbot":        s.chat.Status(),
		"gateway":        s.messenger != nil,
		"started_at":     s.startedAt,
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
	}

	if s.countFunc != nil {
		count, err := s.countFunc(r.Context())
		if err != nil {
			status["indexed_chunks_error"] = err.Error()
		} else {
			status["indexed_chunks"] = count
		}
	}

	writeJSON(w, http.StatusOK, status)
}
