package chat

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai"
	"github.com/nukhba-ai/tutor/backend/internal/service/ai/aitest"
)

func setupRouter(t *testing.T, apiKey string, upstream http.HandlerFunc) *chi.Mux {
	t.Helper()

	baseURL := "http://127.0.0.1:1"
	if upstream != nil {
		srv := httptest.NewServer(upstream)
		t.Cleanup(srv.Close)
		baseURL = srv.URL
	}

	factory := func(key string) (ai.Provider, error) {
		return ai.NewOpenAIProvider(ai.OpenAIOptions{APIKey: key, BaseURL: baseURL})
	}
	handler := New(func() string { return apiKey }, factory, nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, resp.Body.String())
	}
	return body
}

func completion(content string) string {
	payload, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(payload)
}

func TestChatForwardsMessage(t *testing.T) {
	var got map[string]any
	r := setupRouter(t, "sk-test", func(w http.ResponseWriter, req *http.Request) {
		if auth := req.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected authorization %q", auth)
		}
		raw, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion("مرحبا! Your sentence is correct."))
	})

	resp := post(r, `{"message":"Ana talib"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if body := decode(t, resp); body["response"] != "مرحبا! Your sentence is correct." {
		t.Fatalf("unexpected response %q", body["response"])
	}

	if got["model"] != "gpt-4o" {
		t.Fatalf("unexpected model %v", got["model"])
	}
	if got["max_tokens"] != float64(500) {
		t.Fatalf("unexpected max_tokens %v", got["max_tokens"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", got["messages"])
	}
	system, _ := msgs[0].(map[string]any)
	if system["role"] != "system" || system["content"] != proxySystemPrompt {
		t.Fatalf("unexpected system message %v", system)
	}
	if _, ok := got["response_format"]; ok {
		t.Fatal("proxy must not request JSON output")
	}
}

func TestChatRejectsInvalidBodies(t *testing.T) {
	r := setupRouter(t, "sk-test", nil)

	for _, body := range []string{``, `{`, `{}`, `{"message":""}`, `{"message":42}`, `{"message":null}`} {
		resp := post(r, body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, resp.Code)
		}
	}
}

func TestChatMissingKey(t *testing.T) {
	r := setupRouter(t, "", nil)

	resp := post(r, `{"message":"hello"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if body := decode(t, resp); !strings.Contains(body["error"], "OPENAI_API_KEY") {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

func TestChatPassesProviderStatus(t *testing.T) {
	r := setupRouter(t, "sk-bad", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	})

	resp := post(r, `{"message":"hello"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if body := decode(t, resp); !strings.HasPrefix(body["error"], "OpenAI API error: ") {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

func TestChatEmptyCompletion(t *testing.T) {
	r := setupRouter(t, "sk-test", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion(""))
	})

	resp := post(r, `{"message":"hello"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if body := decode(t, resp); body["error"] != "No response from AI" {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

func TestChatWhitespaceCompletion(t *testing.T) {
	r := setupRouter(t, "sk-test", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion("  \n  "))
	})

	resp := post(r, `{"message":"hello"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if body := decode(t, resp); body["error"] != "No response from AI" {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

func TestChatUnknownProviderStatus(t *testing.T) {
	provider := aitest.NewProvider(aitest.Reply{Err: &voice.RemoteServiceError{Message: "model not found"}})
	handler := New(func() string { return "sk-test" }, func(string) (ai.Provider, error) { return provider, nil }, nil)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	resp := post(r, `{"message":"hello"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if body := decode(t, resp); body["error"] != "OpenAI API error: model not found" {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

func TestChatUnreachableProvider(t *testing.T) {
	r := setupRouter(t, "sk-test", nil)

	resp := post(r, `{"message":"hello"}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if body := decode(t, resp); body["error"] != "Internal server error. Please try again later." {
		t.Fatalf("unexpected error %q", body["error"])
	}
}

func TestChatGetNotAllowed(t *testing.T) {
	r := setupRouter(t, "sk-test", nil)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("Method not allowed")) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}
