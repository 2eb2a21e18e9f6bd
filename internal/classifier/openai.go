package classifier

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

	"golang.org/x/time/rate"

	"github.com/routelab-ai/routelab/internal/model"
)

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	BaseURL    string // e.g. https://api.openai.com/v1
	APIKey     string
	Model      string
	Timeout    time.Duration // per-Classify budget, retries included
	Rate       float64       // sustained requests per second
	Burst      int
	MaxRetries int // retries on 429 and 5xx
}

// OpenAIClient classifies tickets against an OpenAI-compatible
// chat-completions endpoint. A shared rate limiter throttles all calls so
// concurrent runs stay within the upstream quota.
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewOpenAIClient builds a client. The http.Client carries no timeout of its
// own; the per-call context set in Classify bounds each attempt.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 4
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		logger:     logger,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify renders the prompt for the ticket, calls the model, and parses a
// category out of the response. Retries 429 and 5xx with backoff inside the
// configured timeout; every failure mode comes back as a *Error.
func (c *OpenAIClient) Classify(ctx context.Context, prompt model.Prompt, ticket string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt.Render(ticket)}},
		Temperature: 0,
		MaxTokens:   32,
	})
	if err != nil {
		return "", &Error{Kind: KindMalformed, Msg: "encode request", Err: err}
	}

	content, err := c.send(ctx, body)
	if err != nil {
		return "", err
	}

	category, ok := ParseCategory(content, prompt.Categories)
	if !ok {
		return "", &Error{Kind: KindNoCategory, Msg: fmt.Sprintf("no category in response %q", truncate(content, 120))}
	}
	return category, nil
}

// Complete sends a system and user message pair and returns the raw
// assistant reply. The suggestion service uses this; it shares the upstream
// endpoint and rate limit with classification calls.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", &Error{Kind: KindMalformed, Msg: "encode request", Err: err}
	}
	return c.send(ctx, body)
}

// send posts the chat request, retrying transient upstream failures. Each
// attempt waits on the shared rate limiter first.
func (c *OpenAIClient) send(ctx context.Context, body []byte) (string, error) {
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", wrapCtxErr(ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", wrapCtxErr(err)
		}

		content, retriable, err := c.attempt(ctx, url, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retriable {
			return "", err
		}
		c.logger.Debug("classifier attempt failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}
	return "", lastErr
}

func (c *OpenAIClient) attempt(ctx context.Context, url string, body []byte) (content string, retriable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, &Error{Kind: KindUpstream, Msg: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, wrapCtxErr(ctx.Err())
		}
		return "", true, &Error{Kind: KindUpstream, Msg: "send request", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck // drain for connection reuse
		return "", true, &Error{Kind: KindRateLimited, Msg: "upstream returned 429"}
	case resp.StatusCode >= 500:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", true, &Error{Kind: KindUpstream, Msg: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(snippet), 200))}
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", false, &Error{Kind: KindUpstream, Msg: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(snippet), 200))}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", false, &Error{Kind: KindMalformed, Msg: "decode response", Err: err}
	}
	if len(cr.Choices) == 0 {
		return "", false, &Error{Kind: KindMalformed, Msg: "response has no choices"}
	}
	return cr.Choices[0].Message.Content, false, nil
}

func wrapCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Msg: "call budget exhausted", Err: err}
	}
	return &Error{Kind: KindUpstream, Msg: "cancelled", Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
