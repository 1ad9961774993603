package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(apiKey string) *Server {
	s := New(apiKey)
	return s
}

func postJSON(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/responses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rec.Body.String())
	}
	return out["error"]
}

func TestRejectsNonPost(t *testing.T) {
	handler := newTestServer("sk-test").Handler()
	req := httptest.NewRequest(http.MethodGet, "/api/responses", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); !strings.Contains(allow, "POST") {
		t.Errorf("expected Allow header naming POST, got %q", allow)
	}
}

func TestPreflightGetsCORSHeaders(t *testing.T) {
	handler := newTestServer("sk-test").Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/responses", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected permissive CORS origin")
	}
}

func TestMissingAPIKey(t *testing.T) {
	handler := newTestServer("").Handler()
	rec := postJSON(t, handler, `{"messages":[{"role":"user","content":"hi"}]}`)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Missing OPENAI_API_KEY" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestRejectsInvalidJSON(t *testing.T) {
	handler := newTestServer("sk-test").Handler()
	rec := postJSON(t, handler, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRejectsWhenNoValidMessages(t *testing.T) {
	handler := newTestServer("sk-test").Handler()
	for _, body := range []string{
		`{"messages":[]}`,
		`{"messages":[{"role":"user"}]}`,
		`{"messages":[{"content":"orphan"},42,"nope"]}`,
	} {
		rec := postJSON(t, handler, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestCompletionCoercesNonGPTModel(t *testing.T) {
	var got map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad upstream payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer upstream.Close()

	s := newTestServer("sk-test")
	s.CompletionsURL = upstream.URL
	rec := postJSON(t, s.Handler(), `{"model":"llama-3","messages":[{"role":"user","content":"hi"}],"temperature":0.2}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got["model"] != "gpt-3.5-turbo" {
		t.Errorf("expected model pinned to gpt-3.5-turbo, got %v", got["model"])
	}
	if got["stream"] != false {
		t.Errorf("expected stream:false, got %v", got["stream"])
	}
	if got["temperature"] != 0.2 {
		t.Errorf("expected temperature forwarded, got %v", got["temperature"])
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("upstream body not relayed: %s", rec.Body.String())
	}
}

func TestCompletionKeepsGPTModel(t *testing.T) {
	var gotModel string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		gotModel = payload.Model
		io.WriteString(w, `{}`)
	}))
	defer upstream.Close()

	s := newTestServer("sk-test")
	s.CompletionsURL = upstream.URL
	postJSON(t, s.Handler(), `{"model":"gpt-4o-mini","messages":[{"role":"user","content":"hi"}]}`)

	if gotModel != "gpt-4o-mini" {
		t.Errorf("gpt model should pass through, got %q", gotModel)
	}
}

func TestCompletionPreservesUpstreamStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer upstream.Close()

	s := newTestServer("sk-test")
	s.CompletionsURL = upstream.URL
	rec := postJSON(t, s.Handler(), `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 relayed, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rate limited") {
		t.Errorf("upstream error body not relayed: %s", rec.Body.String())
	}
}

func TestStreamRelaysBodyVerbatim(t *testing.T) {
	const frames = "data: {\"output\":[{\"type\":\"message\",\"content\":[{\"type\":\"output_text\",\"text\":\"Hi\"}]}]}\n\ndata: [DONE]\n\n"

	var upstreamBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamBody, _ = io.ReadAll(r.Body)
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", auth)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, frames)
	}))
	defer upstream.Close()

	s := newTestServer("sk-test")
	s.ResponsesURL = upstream.URL
	body := `{"model":"gpt-4o-mini","input":[{"role":"user","content":"hi"}],"stream":true}`
	rec := postJSON(t, s.Handler(), body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if string(upstreamBody) != body {
		t.Errorf("payload not forwarded verbatim: %s", upstreamBody)
	}
	if rec.Body.String() != frames {
		t.Errorf("stream bytes altered in transit:\n%s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestStreamPreservesUpstreamErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid key"}}`)
	}))
	defer upstream.Close()

	s := newTestServer("sk-test")
	s.ResponsesURL = upstream.URL
	rec := postJSON(t, s.Handler(), `{"stream":true,"input":[{"role":"user","content":"hi"}]}`)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 relayed, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid key") {
		t.Errorf("error body not relayed: %s", rec.Body.String())
	}
}
