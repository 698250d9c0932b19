// Package llm asks a multimodal language model for a written accessibility
// assessment over the Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
	"ablemap/internal/infrastructure/httputil"
)

const (
	DefaultLanguage   = "Korean"
	defaultBaseURL    = "https://api.anthropic.com"
	defaultModel      = "claude-3-5-sonnet-latest"
	defaultMaxTokens  = 2048
	defaultMaxRetries = 3
	defaultBackoff    = 2 * time.Second
	defaultRateWait   = 60 * time.Second
	apiVersion        = "2023-06-01"
	thumbnailSide     = 1024
	maxResponseBytes  = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Language   string
	MaxTokens  int
	MaxRetries int
	Backoff    time.Duration // first transport retry delay, doubled per attempt
	RateWait   time.Duration // wait after 429 without Retry-After
}

// Client calls the Messages endpoint.
type Client struct {
	cfg  Config
	http httputil.HTTPClient
	log  port.Logger
}

var _ port.NarrativeAnalyzer = (*Client)(nil)

// NewClient creates a client. Zero values in cfg take defaults.
func NewClient(cfg Config, httpClient httputil.HTTPClient, logger port.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.RateWait <= 0 {
		cfg.RateWait = defaultRateWait
	}
	return &Client{cfg: cfg, http: httpClient, log: logger}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

// RequestAnalysis sends prompt and images and parses the model's reply.
func (c *Client) RequestAnalysis(ctx context.Context, images []image.Image, prompt string) (*entity.NarrativeReport, error) {
	blocks := []contentBlock{{Type: "text", Text: prompt}}
	for i, img := range images {
		if img == nil {
			continue
		}
		data, mediaType, err := encodeImage(img, thumbnailSide)
		if err != nil {
			return nil, fmt.Errorf("%w: encode image %d: %v", entity.ErrLLM, i, err)
		}
		blocks = append(blocks, contentBlock{
			Type:   "image",
			Source: &imageSource{Type: "base64", MediaType: mediaType, Data: data},
		})
	}

	payload, err := json.Marshal(messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    SystemPrompt(c.cfg.Language),
		Messages:  []message{{Role: "user", Content: blocks}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", entity.ErrLLM, err)
	}

	text, err := c.send(ctx, payload)
	if err != nil {
		return nil, err
	}
	return ParseResponse(text), nil
}

// errRetry marks attempts worth repeating.
var errRetry = errors.New("retryable")

func (c *Client) send(ctx context.Context, payload []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		start := time.Now()
		text, wait, err := c.attempt(ctx, payload)
		if err == nil {
			c.log.Printf("llm: request completed in %s", time.Since(start).Round(time.Millisecond))
			return text, nil
		}
		if !errors.Is(err, errRetry) {
			return "", err
		}
		lastErr = err
		if attempt == c.cfg.MaxRetries-1 {
			break
		}
		if wait == 0 {
			wait = httputil.Backoff(c.cfg.Backoff, attempt)
		}
		c.log.Printf("llm: attempt %d/%d failed (%v), retrying in %s", attempt+1, c.cfg.MaxRetries, err, wait)
		if err := httputil.Sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("%w: %v", entity.ErrLLM, err)
		}
	}
	return "", fmt.Errorf("%w: retries exhausted: %v", entity.ErrLLM, lastErr)
}

// attempt performs one request. A retryable failure wraps errRetry and may
// carry the wait requested by the server.
func (c *Client) attempt(ctx context.Context, payload []byte) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("%w: create request: %v", entity.ErrLLM, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, fmt.Errorf("%w: %v", entity.ErrLLM, ctx.Err())
		}
		return "", 0, fmt.Errorf("%w: %v", errRetry, err)
	}
	body, err := httputil.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return "", 0, fmt.Errorf("%w: read response: %v", errRetry, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", httputil.RetryAfter(resp.Header, c.cfg.RateWait), fmt.Errorf("%w: rate limited", errRetry)
	case resp.StatusCode >= 400:
		return "", 0, fmt.Errorf("%w: http %d: %s", entity.ErrLLM, resp.StatusCode, truncate(string(body), 300))
	}

	var out messagesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", 0, fmt.Errorf("%w: decode response: %v", entity.ErrLLM, err)
	}
	for _, block := range out.Content {
		if block.Type == "text" || block.Type == "" {
			return block.Text, 0, nil
		}
	}
	return "", 0, fmt.Errorf("%w: response has no text content", entity.ErrLLM)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
