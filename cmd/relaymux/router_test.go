package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	relaymux "github.com/relaymux/relaymux"
	"github.com/relaymux/relaymux/backends"
	"github.com/relaymux/relaymux/internal/state"
)

func testGateway(upstreamURL string) *relaymux.Gateway {
	catalog := backends.NewCatalog("chat", []backends.Backend{{
		ProviderID: "primary",
		BaseURL:    upstreamURL,
		APIKey:     "sk-upstream",
		ChatPath:   "/v1/chat/completions",
		Model:      "gpt-4o-mini",
	}})
	return relaymux.New(catalog, state.NewMemStore())
}

func TestHealthzBypassesAuth(t *testing.T) {
	r := newRouter(testGateway("http://127.0.0.1:0"), "gw-secret", nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestMetricsBypassesAuth(t *testing.T) {
	r := newRouter(testGateway("http://127.0.0.1:0"), "gw-secret", nil)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestAuthRejectsMissingOrWrongKey(t *testing.T) {
	r := newRouter(testGateway("http://127.0.0.1:0"), "gw-secret", nil)

	for _, tc := range []struct {
		name string
		auth string
	}{
		{"missing", ""},
		{"wrong", "Bearer nope"},
		{"malformed", "gw-secret"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/models", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			var body struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if body.Error.Type != "unauthorized" {
				t.Errorf("error type = %q, want unauthorized", body.Error.Type)
			}
		})
	}
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	r := newRouter(testGateway("http://127.0.0.1:0"), "", nil)
	req := httptest.NewRequest("GET", "/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestModelsListsAlias(t *testing.T) {
	r := newRouter(testGateway("http://127.0.0.1:0"), "", nil)
	req := httptest.NewRequest("GET", "/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body struct {
		Object string `json:"object"`
		Data   []struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			OwnedBy string `json:"owned_by"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode models response: %v", err)
	}
	if body.Object != "list" || len(body.Data) != 1 {
		t.Fatalf("unexpected models payload: %+v", body)
	}
	if body.Data[0].ID != "chat" || body.Data[0].OwnedBy != "gateway" {
		t.Errorf("model entry = %+v", body.Data[0])
	}
}

func TestRootBanner(t *testing.T) {
	r := newRouter(testGateway("http://127.0.0.1:0"), "", nil)
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode banner: %v", err)
	}
	docs, _ := body["docs"].(string)
	if !strings.Contains(docs, "/v1") {
		t.Errorf("docs = %q, want baseURL hint", docs)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(testGateway("http://127.0.0.1:0"), "gw-secret", []string{"https://app.example.com"})
	req := httptest.NewRequest("OPTIONS", "/v1/chat/completions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin = %q", got)
	}
}

// TestChatCompletionEndToEnd drives the full router with a stock OpenAI
// client, the way real callers integrate.
func TestChatCompletionEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-upstream" {
			t.Errorf("upstream auth = %q", got)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode upstream payload: %v", err)
		}
		if payload["model"] != "gpt-4o-mini" {
			t.Errorf("upstream model = %v, want gpt-4o-mini", payload["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "pong"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
		}`))
	}))
	defer upstream.Close()

	srv := httptest.NewServer(newRouter(testGateway(upstream.URL), "gw-secret", nil))
	defer srv.Close()

	client := openai.NewClient(
		option.WithAPIKey("gw-secret"),
		option.WithBaseURL(srv.URL+"/v1"),
	)
	completion, err := client.Chat.Completions.New(context.Background(), openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		Model: "chat",
	})
	if err != nil {
		t.Fatalf("chat completion: %v", err)
	}
	if completion.Model != "chat" {
		t.Errorf("model = %q, want alias chat", completion.Model)
	}
	if len(completion.Choices) != 1 || completion.Choices[0].Message.Content != "pong" {
		t.Errorf("unexpected completion: %+v", completion.Choices)
	}
	if completion.Usage.TotalTokens != 4 {
		t.Errorf("total tokens = %d, want 4", completion.Usage.TotalTokens)
	}
}
