package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Default OpenAI endpoints for direct mode. Proxy mode sends the same
// bodies to a single same-origin route instead.
const (
	DefaultResponsesURL   = "https://api.openai.com/v1/responses"
	DefaultCompletionsURL = "https://api.openai.com/v1/chat/completions"
	DefaultProxyRoute     = "/api/responses"
)

// UpstreamError is a non-success HTTP response from the model endpoint.
// Body is the response text verbatim; it is often a JSON error envelope
// and is surfaced to the user unmodified.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if strings.TrimSpace(e.Body) != "" {
		return e.Body
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Client issues model requests either directly against the provider or
// through a same-origin proxy that holds the credential server-side.
// An empty APIKey selects proxy mode.
type Client struct {
	APIKey         string
	ProxyURL       string
	ResponsesURL   string
	CompletionsURL string

	// HTTPClient intentionally carries no timeout: a hung upstream is
	// resolved only by cancelling the request context.
	HTTPClient *http.Client
}

// NewClient returns a client routing to the proxy when apiKey is empty.
func NewClient(apiKey, proxyURL string) *Client {
	return &Client{
		APIKey:         apiKey,
		ProxyURL:       proxyURL,
		ResponsesURL:   DefaultResponsesURL,
		CompletionsURL: DefaultCompletionsURL,
		HTTPClient:     &http.Client{},
	}
}

func (c *Client) direct() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Send posts the payload in streaming mode and returns the raw response
// body. Cancelling ctx aborts the call at any point, including during
// body reads, and releases the connection. A non-success status is
// returned as *UpstreamError with the response text attached.
func (c *Client) Send(ctx context.Context, p Payload) (io.ReadCloser, error) {
	p.Stream = true
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := c.ProxyURL
	if c.direct() {
		url = c.ResponsesURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.direct() {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return resp.Body, nil
}

// Stream sends the payload and decodes the response into an event
// stream. Transport failures before the first byte arrive through Recv
// as an EventError; stream end without an explicit done sentinel still
// terminates the turn normally.
func (c *Client) Stream(ctx context.Context, p Payload) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		body, err := c.Send(ctx, p)
		if err != nil {
			return err
		}
		defer body.Close()

		dec := NewDecoder()
		buf := make([]byte, 4096)
		for {
			n, readErr := body.Read(buf)
			if n > 0 {
				for _, ev := range dec.Feed(buf[:n]) {
					events <- ev
				}
				if dec.Done() {
					return nil
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("stream read: %w", readErr)
			}
		}

		for _, ev := range dec.Finish() {
			events <- ev
		}
		if !dec.Done() {
			events <- Event{Type: EventDone}
		}
		return nil
	}), nil
}

// completionsRequest is the non-streaming chat-completions wire shape.
// The streaming and non-streaming paths deliberately keep their distinct
// formats; the proxy accepts both.
type completionsRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
}

type completionsResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete requests a whole reply in one response instead of a stream.
func (c *Client) Complete(ctx context.Context, p Payload) (string, error) {
	body, err := json.Marshal(completionsRequest{
		Model:       p.Model,
		Messages:    p.Input,
		Stream:      false,
		Temperature: p.Temperature,
		TopP:        p.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	url := c.ProxyURL
	if c.direct() {
		url = c.CompletionsURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.direct() {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed completionsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
