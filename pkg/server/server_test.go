package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/shirayu/docent/pkg/model"
	"github.com/shirayu/docent/pkg/server"
	"github.com/shirayu/docent/pkg/session"
	"github.com/shirayu/docent/pkg/usecase/chatbot"
)

type mockRetriever struct {
	chunks []model.RetrievedChunk
}

func (m *mockRetriever) Search(ctx context.Context, query string, k int) ([]model.RetrievedChunk, error) {
	return m.chunks, nil
}

type mockGenerator struct{}

func (m *mockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return "generated answer", nil
}

type mockMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (m *mockMessenger) Send(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+": "+body)
	return nil
}

func (m *mockMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestChatbot() *chatbot.UseCase {
	rtr := &mockRetriever{chunks: []model.RetrievedChunk{
		{Text: "refund policy details", Source: "faq.pdf", Score: 0.9},
	}}
	return chatbot.New(session.New(), rtr, &mockGenerator{})
}

func postForm(t *testing.T, handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy when initialized", func(t *testing.T) {
		srv := server.New(":0", newTestChatbot())

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		gt.V(t, rec.Code).Equal(http.StatusOK)

		var body map[string]any
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		gt.V(t, body["status"]).Equal("healthy")
	})

	t.Run("unhealthy when dependencies missing", func(t *testing.T) {
		srv := server.New(":0", chatbot.New(session.New(), nil, nil))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		gt.V(t, rec.Code).Equal(http.StatusServiceUnavailable)
	})
}

func TestChatEndpoint(t *testing.T) {
	srv := server.New(":0", newTestChatbot())

	body := strings.NewReader(`{"user_id": "alice", "message": "what is the refund policy?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusOK)

	var resp model.Response
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	gt.V(t, resp.Text).Equal("generated answer")
	gt.V(t, resp.Confidence).NotNil()
	gt.A(t, resp.Sources).Length(1)
}

func TestChatEndpointValidation(t *testing.T) {
	srv := server.New(":0", newTestChatbot())

	t.Run("missing message", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"user_id": "alice"}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		gt.V(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("not json"))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		gt.V(t, rec.Code).Equal(http.StatusBadRequest)
	})
}

func TestWebhookEndpoint(t *testing.T) {
	messenger := &mockMessenger{}
	srv := server.New(":0", newTestChatbot(), server.WithMessenger(messenger))

	rec := postForm(t, srv.Handler(), "/webhook/whatsapp", url.Values{
		"MessageSid": {"SM123"},
		"From":       {"whatsapp:+15551234567"},
		"To":         {"whatsapp:+15557654321"},
		"Body":       {"what is the refund policy?"},
	})
	gt.V(t, rec.Code).Equal(http.StatusOK)

	// The reply is delivered off the request path.
	deadline := time.Now().Add(2 * time.Second)
	for messenger.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	gt.V(t, messenger.count()).Equal(1)
	gt.S(t, messenger.sent[0]).Contains("whatsapp:+15551234567")
	gt.S(t, messenger.sent[0]).Contains("generated answer")
}

func TestWebhookValidation(t *testing.T) {
	srv := server.New(":0", newTestChatbot())

	t.Run("missing sender", func(t *testing.T) {
		rec := postForm(t, srv.Handler(), "/webhook/whatsapp", url.Values{
			"Body": {"hello"},
		})
		gt.V(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("missing body", func(t *testing.T) {
		rec := postForm(t, srv.Handler(), "/webhook/whatsapp", url.Values{
			"From": {"whatsapp:+15551234567"},
		})
		gt.V(t, rec.Code).Equal(http.StatusBadRequest)
	})
}

func TestWebhookRateLimit(t *testing.T) {
	messenger := &mockMessenger{}
	srv := server.New(":0", newTestChatbot(),
		server.WithMessenger(messenger),
		server.WithWebhookRateLimit(2, time.Minute),
	)

	form := url.Values{
		"From": {"whatsapp:+15551234567"},
		"Body": {"hello"},
	}

	gt.V(t, postForm(t, srv.Handler(), "/webhook/whatsapp", form).Code).Equal(http.StatusOK)
	gt.V(t, postForm(t, srv.Handler(), "/webhook/whatsapp", form).Code).Equal(http.StatusOK)
	gt.V(t, postForm(t, srv.Handler(), "/webhook/whatsapp", form).Code).Equal(http.StatusTooManyRequests)

	// Other senders are unaffected.
	other := url.Values{
		"From": {"whatsapp:+15559990000"},
		"Body": {"hello"},
	}
	gt.V(t, postForm(t, srv.Handler(), "/webhook/whatsapp", other).Code).Equal(http.StatusOK)
}

func TestConversationEndpoints(t *testing.T) {
	chat := newTestChatbot()
	srv := server.New(":0", chat)

	chat.Process(context.Background(), "alice", "first question")

	t.Run("summary", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversation/alice", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		gt.V(t, rec.Code).Equal(http.StatusOK)

		var summary model.Summary
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		gt.True(t, summary.Exists)
		gt.V(t, summary.MessageCount).Equal(2)
	})

	t.Run("clear", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/conversation/alice", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		gt.V(t, rec.Code).Equal(http.StatusOK)

		var body map[string]any
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		gt.V(t, body["success"]).Equal(true)
		gt.V(t, body["user_id"]).Equal("alice")
	})

	t.Run("clear unknown user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/conversation/nobody", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		var body map[string]any
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		gt.V(t, body["success"]).Equal(false)
	})
}

func TestStatusEndpoint(t *testing.T) {
	srv := server.New(":0", newTestChatbot(),
		server.WithChunkCounter(func(ctx context.Context) (uint64, error) {
			return 42, nil
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	gt.V(t, rec.Code).Equal(http.StatusOK)

	var body map[string]any
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	gt.V(t, body["indexed_chunks"]).Equal(float64(42))
	gt.V(t, body["gateway"]).Equal(false)

	chatStatus := body["chatbot"].(map[string]any)
	gt.V(t, chatStatus["initialized"]).Equal(true)
}
