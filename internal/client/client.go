// Package client provides an HTTP client for the question-answering API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/models"
)

// Client is an HTTP client for the question-answering API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	collector  *metrics.Collector
}

// Option customizes the client.
type Option func(c *Client)

// WithHTTPClient supplies a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCollector records request timings.
func WithCollector(collector *metrics.Collector) Option {
	return func(c *Client) {
		c.collector = collector
	}
}

// New creates a new API client.
// If endpoint is empty, uses RAGCHAT_API_URL env var or defaults to localhost:8000.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("RAGCHAT_API_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8000"
	}

	c := &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With("component", "client")
	return c
}

// Endpoint returns the API base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// HTTPError wraps non-2xx responses.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("server error: %s - %s", e.Status, e.Body)
	}
	return fmt.Sprintf("server error: %s", e.Status)
}

// do sends a JSON request and decodes a JSON response into out.
// The bearer header is attached only for a non-empty token.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		reqBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("api request", "method", method, "path", path, "authenticated", token != "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// =============================================================================
// CHAT
// =============================================================================

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Question       string                `json:"question"`
	ConversationID models.ConversationID `json:"conversation_id"`
	TopK           int                   `json:"top_k"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Answer         string                `json:"answer"`
	Sources        []models.Source       `json:"sources"`
	ConversationID models.ConversationID `json:"conversation_id"`
}

// Chat submits a question. An empty token sends the request anonymously.
func (c *Client) Chat(ctx context.Context, token string, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	var resp ChatResponse
	err := c.do(ctx, http.MethodPost, "/chat", token, req, &resp)
	c.collector.Track(metrics.OpChat, start, err)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns the authenticated user's conversation summaries in
// server order.
func (c *Client) ListConversations(ctx context.Context, token string) ([]models.ConversationSummary, error) {
	start := time.Now()

	var result struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	err := c.do(ctx, http.MethodGet, "/conversations", token, nil, &result)
	c.collector.Track(metrics.OpListConversations, start, err)
	if err != nil {
		return nil, err
	}
	if result.Conversations == nil {
		return []models.ConversationSummary{}, nil
	}
	return result.Conversations, nil
}

// GetConversation returns the full message list of a conversation, normalized so
// every message carries a non-nil sources slice.
func (c *Client) GetConversation(ctx context.Context, token string, id models.ConversationID) ([]models.Message, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("conversation id is required")
	}
	start := time.Now()

	var result struct {
		Messages []models.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id.String()), token, nil, &result)
	c.collector.Track(metrics.OpGetConversation, start, err)
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, len(result.Messages))
	for i, m := range result.Messages {
		messages[i] = m.Normalize()
	}
	return messages, nil
}
