package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"carspire/config"
	"carspire/internal/adapter/chunker"
	"carspire/internal/adapter/embedding"
	"carspire/internal/adapter/llm"
	"carspire/internal/adapter/memstore"
	"carspire/internal/adapter/retriever"
	"carspire/internal/domain"
	"carspire/internal/usecase"
)

type testServer struct {
	srv   *Server
	store *memstore.KnowledgeStore
	llm   *llm.Echo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}

	st := memstore.NewKnowledgeStore()
	emb := embedding.NewMockEmbedder(16)
	echo := &llm.Echo{Reply: "Top up the coolant when the engine is cold."}

	learn := usecase.NewLearnUseCase(chunker.NewLineChunker(cfg.Chunk.MaxChars, cfg.Chunk.MinLearnChars), emb, st, zap.NewNop())
	chat := usecase.NewChatUseCase(retriever.NewSemanticRetriever(st, emb), st, echo)

	srv := NewServer(learn, chat, st, "gpt-4o-mini", cfg, zap.NewNop())
	srv.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &testServer{srv: srv, store: st, llm: echo}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.Model != "gpt-4o-mini" || resp.Time.Year() != 2024 {
		t.Errorf("unexpected health response %+v", resp)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestHandleLearn(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/learn", `{"text":"Change oil every 5000 miles. Use 0W-20."}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp usecase.LearnResult
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Added != 1 || ts.store.Len() != 1 {
		t.Errorf("expected one fragment added, got %+v (store %d)", resp, ts.store.Len())
	}
}

func TestHandleLearnRejectsShortText(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/learn", `{"text":"oil!"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp map[string]string
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp["error"] == "" {
		t.Error("expected an error message")
	}
	if ts.store.Len() != 0 {
		t.Error("store should be unchanged")
	}
}

func TestHandleLearnBodyLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.config.MaxBodyBytes = 64

	body := `{"text":"` + strings.Repeat("a", 200) + `"}`
	w := ts.do(t, http.MethodPost, "/api/learn", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestHandleChat(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/learn", `{"text":"Coolant should only be opened when the engine is cold."}`)

	w := ts.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"When can I open the coolant cap?"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp usecase.ChatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.UsedContext != 1 || resp.Reply == "" {
		t.Errorf("unexpected chat response %+v", resp)
	}
}

func TestHandleChatEmptyStore(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}],"topK":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"usedContext":0`)) {
		t.Errorf("expected usedContext 0, got %s", w.Body.String())
	}
}

func TestHandleChatValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing messages", `{}`},
		{"messages not an array", `{"messages":"hello"}`},
		{"unknown role", `{"messages":[{"role":"robot","content":"hi"}]}`},
		{"malformed json", `{"messages":[`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/chat", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestHandleChatProviderError(t *testing.T) {
	ts := newTestServer(t)
	ts.llm.Err = &domain.ProviderError{Provider: "openai", Op: "chat", StatusCode: http.StatusTooManyRequests, Detail: "rate limited"}

	w := ts.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected upstream status 429, got %d", w.Code)
	}
	var resp providerErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "AI_REQUEST_FAILED" || resp.Status != 429 || resp.Detail != "rate limited" {
		t.Errorf("unexpected error body %+v", resp)
	}
}

func TestHandleChatTransportErrorIsBadGateway(t *testing.T) {
	ts := newTestServer(t)
	ts.llm.Err = &domain.ProviderError{Provider: "openai", Op: "chat", Err: context.DeadlineExceeded}

	w := ts.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestHandleStats(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/learn", `{"text":"Rotate tires every 6000 miles."}`)

	w := ts.do(t, http.MethodGet, "/api/stats", "")
	var stats domain.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Fragments != 1 || stats.Vectors != 1 || stats.Dimension != 16 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)
	h := ts.srv.Handler()

	preflight := func(origin string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
		r.Header.Set("Origin", origin)
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
		r.Header.Set("Access-Control-Request-Headers", "Content-Type")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	w := preflight("http://localhost:5173")
	if w.Code < 200 || w.Code >= 300 {
		t.Errorf("expected a 2xx preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow-origin %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("expected POST to be allowed, got %q", got)
	}

	w = preflight("http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("preflight outside the allow-list got allow-origin %q", got)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("origin outside the allow-list got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow-origin %q on a simple request", got)
	}
}

func TestRateLimitPerClientIP(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.config.RateLimit = 2
	ts.srv.config.RateWindow = time.Minute
	h := ts.srv.Handler()

	get := func(ip string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		r.Header.Set("X-Real-IP", ip)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := get("203.0.113.7"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, code)
		}
	}
	if code := get("203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 once the limit is spent, got %d", code)
	}
	if code := get("198.51.100.4"); code != http.StatusOK {
		t.Errorf("another client should not be limited, got %d", code)
	}
}

func TestRequestIDIsReused(t *testing.T) {
	ts := newTestServer(t)
	id := "7f9c2c1e-3b8a-4f57-9a4e-2f0f1b6f9d11"

	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Header.Set(requestIDHeader, id)
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, r)

	if got := w.Header().Get(requestIDHeader); got != id {
		t.Errorf("expected request id %s, got %s", id, got)
	}
}
