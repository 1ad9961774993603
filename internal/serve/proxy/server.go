// Package proxy implements the API relay the browser-facing client talks to
// when it has no credential of its own: it accepts chat requests on a single
// route, attaches the server-side OpenAI key, and forwards either a streaming
// responses call or a non-streaming chat completion.
package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samsaffron/webchat/internal/llm"
)

// Server relays chat requests to OpenAI using its own API key. Callers never
// see the credential; errors from upstream are passed through verbatim.
type Server struct {
	APIKey         string
	Route          string
	ResponsesURL   string
	CompletionsURL string
	Client         *http.Client
}

func New(apiKey string) *Server {
	return &Server{
		APIKey:         apiKey,
		Route:          llm.DefaultProxyRoute,
		ResponsesURL:   llm.DefaultResponsesURL,
		CompletionsURL: llm.DefaultCompletionsURL,
		Client:         &http.Client{},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.Route, s.handleChat)
	return mux
}

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []json.RawMessage `json:"messages"`
	Input       []json.RawMessage `json:"input"`
	Stream      bool              `json:"stream"`
	Temperature *float64          `json:"temperature"`
	TopP        *float64          `json:"top_p"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	// The browser client may be served from a different origin than the
	// relay, so CORS is wide open.
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		h.Set("Allow", "POST, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.APIKey == "" {
		writeError(w, http.StatusInternalServerError, "Missing OPENAI_API_KEY")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	// The client sends history under "input"; older payload shapes used
	// "messages". Accept both.
	raw := req.Messages
	if len(raw) == 0 {
		raw = req.Input
	}
	msgs := filterMessages(raw)
	if len(msgs) == 0 {
		writeError(w, http.StatusBadRequest, "No valid messages provided")
		return
	}

	if req.Stream {
		s.relayStream(w, r, body)
		return
	}
	s.relayCompletion(w, r, req, msgs)
}

// relayStream forwards the caller's payload untouched to the responses
// endpoint and streams the bytes back as they arrive, preserving the
// upstream status so error bodies reach the client verbatim.
func (s *Server) relayStream(w http.ResponseWriter, r *http.Request, body []byte) {
	up, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.ResponsesURL, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	up.Header.Set("Content-Type", "application/json")
	up.Header.Set("Accept", "text/event-stream")
	up.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(up)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Upstream request failed: %v", err))
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "text/event-stream")
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

// relayCompletion performs a plain chat-completions call on the caller's
// behalf, pinning the model to a safe default when the requested one is not
// a gpt model.
func (s *Server) relayCompletion(w http.ResponseWriter, r *http.Request, req chatRequest, msgs []chatMessage) {
	model := req.Model
	if !strings.HasPrefix(model, "gpt-") {
		model = "gpt-3.5-turbo"
	}

	payload := map[string]any{
		"model":    model,
		"messages": msgs,
		"stream":   false,
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		payload["top_p"] = *req.TopP
	}
	body, err := json.Marshal(payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	up, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.CompletionsURL, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	up.Header.Set("Content-Type", "application/json")
	up.Header.Set("Authorization", "Bearer "+s.APIKey)

	resp, err := s.Client.Do(up)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Upstream request failed: %v", err))
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// filterMessages keeps only entries that carry a non-empty role and string
// content, dropping anything else without failing the whole request.
func filterMessages(raw []json.RawMessage) []chatMessage {
	var out []chatMessage
	for _, r := range raw {
		var m chatMessage
		if err := json.Unmarshal(r, &m); err != nil {
			continue
		}
		if m.Role == "" || m.Content == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
