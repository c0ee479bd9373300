// Package oracle talks to an OpenAI-compatible chat completions endpoint to
// turn screenshots into action decisions.
package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/rfeldhaus/autogui-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. ImagePNG, when non-empty, is a
// base64-encoded PNG attached to the turn as an inline image.
type Message struct {
	Role     Role
	Text     string
	ImagePNG string
}

// Client is the decision backend of the action loop.
type Client interface {
	// Chat sends the conversation and returns the raw assistant reply.
	Chat(ctx context.Context, messages []Message) (string, error)
}

// HTTPClient implements Client against a chat completions HTTP API.
type HTTPClient struct {
	cfg        config.APIConfig
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient builds a client from the API config. The API key is required.
func NewHTTPClient(cfg config.APIConfig, logger *zap.Logger) (*HTTPClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("oracle: api key not set")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("oracle: base url not set")
	}
	return &HTTPClient{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("oracle"),
	}, nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat implements Client. Transient HTTP failures (429 and 5xx) are retried
// with exponential backoff up to cfg.MaxRetries times.
func (c *HTTPClient) Chat(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    convertMessages(messages),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("oracle: marshal request: %w", err)
	}

	var reply string
	operation := func() error {
		var opErr error
		reply, opErr = c.doRequest(ctx, body)
		return opErr
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries))
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return reply, nil
}

func (c *HTTPClient) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("oracle: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		// Network-level failures are worth retrying.
		return "", fmt.Errorf("oracle: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("oracle: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("oracle: api returned status %d: %s", resp.StatusCode, truncate(string(respBody), 512))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Warn("Transient API error, will retry.",
				zap.Int("status", resp.StatusCode))
			return "", apiErr
		}
		return "", backoff.Permanent(apiErr)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("oracle: decode response: %w", err))
	}
	if parsed.Error != nil {
		return "", backoff.Permanent(fmt.Errorf("oracle: api error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", backoff.Permanent(errors.New("oracle: response contained no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}

// convertMessages renders turns in the wire format. Turns without an image use
// a plain string content; turns with one use the multi-part content form.
func convertMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		if m.ImagePNG == "" {
			out = append(out, chatMessage{Role: string(m.Role), Content: m.Text})
			continue
		}
		parts := []contentPart{
			{Type: "text", Text: m.Text},
			{Type: "image_url", ImageURL: &imageURL{
				URL: "data:image/png;base64," + m.ImagePNG,
			}},
		}
		out = append(out, chatMessage{Role: string(m.Role), Content: parts})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
