package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// OpenAI defaults.
const (
	// DefaultBaseURL is the OpenAI REST endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultEmbeddingModel is the embedding model used for relevance.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultEmbeddingDimensions is the vector size of DefaultEmbeddingModel.
	DefaultEmbeddingDimensions = 1536

	// DefaultChatModel is the chat model used to rate documents.
	DefaultChatModel = "gpt-4o-mini"

	// DefaultAPITimeout bounds one API call.
	DefaultAPITimeout = 30 * time.Second
)

// APIError is a non-200 answer of the OpenAI API.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("openai API error: status %d, body: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Client talks to the OpenAI embeddings and chat completion APIs.
// It implements Embedder and is safe for concurrent use.
type Client struct {
	apiKey         string
	baseURL        string
	embeddingModel string
	chatModel      string
	dimensions     int
	httpClient     *http.Client
	logger         *slog.Logger
	backoffFactory func() backoff.BackOff
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithEmbeddingModel selects the embedding model and its vector size.
func WithEmbeddingModel(model string, dimensions int) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
		if dimensions > 0 {
			c.dimensions = dimensions
		}
	}
}

// WithChatModel selects the chat model used by Complete.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBackOff sets the retry policy. Each API call gets a fresh BackOff.
func WithBackOff(factory func() backoff.BackOff) ClientOption {
	return func(c *Client) {
		c.backoffFactory = factory
	}
}

// NewClient creates an OpenAI client. It returns ErrMissingAPIKey when apiKey is empty.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:         apiKey,
		baseURL:        DefaultBaseURL,
		embeddingModel: DefaultEmbeddingModel,
		chatModel:      DefaultChatModel,
		dimensions:     DefaultEmbeddingDimensions,
		httpClient:     &http.Client{Timeout: DefaultAPITimeout},
		logger:         slog.Default(),
		backoffFactory: defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 20 * time.Second
	return backoff.WithMaxRetries(b, 5)
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Embedder. Empty text returns a zero vector without an API call.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float64, c.dimensions), nil
	}

	var resp embeddingResponse
	if err := c.post(ctx, "/embeddings", embeddingRequest{Model: c.embeddingModel, Input: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai API returned no embeddings")
	}
	return resp.Data[0].Embedding, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the answer text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:    c.chatModel,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// post sends payload to path and decodes the answer into out, retrying
// transient failures.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("network error during OpenAI request, retrying", "path", path, "error", err)
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
			if apiErr.Temporary() {
				c.logger.Warn("OpenAI API returned transient error", "path", path, "status", resp.StatusCode)
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx))
}
