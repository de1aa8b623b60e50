// Package ai calls an OpenAI-compatible chat-completions endpoint to review
// one chunk of a pull request and parses the model's JSON reply.
//
// All supported providers speak the same wire protocol; the provider choice
// only selects a default base URL and API-key handling.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rediverio/reviewd/pkg/aggregate"
	"github.com/rediverio/reviewd/pkg/chunk"
	"github.com/rediverio/reviewd/pkg/errors"
	"github.com/rediverio/reviewd/pkg/logging"
	"github.com/rediverio/reviewd/pkg/retry"
	"github.com/rediverio/reviewd/pkg/review"
)

// Provider identifies which chat-completions service to talk to.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderDeepSeek Provider = "deepseek"
	ProviderOllama   Provider = "ollama"
	// ProviderCustom is any self-hosted or third-party OpenAI-compatible
	// endpoint; it requires an explicit BaseURL.
	ProviderCustom Provider = "custom"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultDeepSeekBaseURL = "https://api.deepseek.com"
	defaultOllamaBaseURL   = "http://localhost:11434"

	defaultModel       = "gpt-4o"
	defaultTemperature = 0.3
	defaultMaxTokens   = 4000
	defaultTimeout     = 120 * time.Second
	defaultMaxRetries  = 2
)

// Config holds the analyzer connection settings.
type Config struct {
	Provider Provider
	APIKey   string
	// BaseURL overrides the provider default. Required for ProviderCustom.
	BaseURL     string
	Model       string
	Temperature float64
	// MaxTokens caps the completion length, not the prompt.
	MaxTokens int
	Timeout   time.Duration
	// MaxRetries is how many times a transient failure is reissued
	// on top of the first attempt.
	MaxRetries int
}

// Client reviews chunks against a chat-completions endpoint.
type Client struct {
	config      Config
	endpoint    string
	httpClient  *http.Client
	retryConfig *retry.Config
	logger      logging.Logger
}

// NewClient validates the configuration and returns a ready Client.
func NewClient(config Config, logger logging.Logger) (*Client, error) {
	const op = "ai.NewClient"

	if logger == nil {
		logger = &logging.NopLogger{}
	}
	if config.Provider == "" {
		config.Provider = ProviderOpenAI
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Temperature == 0 {
		config.Temperature = defaultTemperature
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaultMaxTokens
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	// MaxRetries -1 disables retries entirely.
	if config.MaxRetries == 0 {
		config.MaxRetries = defaultMaxRetries
	} else if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	base := strings.TrimRight(config.BaseURL, "/")
	switch config.Provider {
	case ProviderOpenAI:
		if base == "" {
			base = defaultOpenAIBaseURL
		}
	case ProviderDeepSeek:
		if base == "" {
			base = defaultDeepSeekBaseURL
		}
	case ProviderOllama:
		if base == "" {
			base = defaultOllamaBaseURL
		}
		base += "/v1"
		// Ollama ignores the key but the protocol requires one.
		if config.APIKey == "" {
			config.APIKey = "ollama"
		}
	case ProviderCustom:
		if base == "" {
			return nil, errors.E(errors.KindInvalidInput, op,
				"custom provider requires a base URL")
		}
	default:
		return nil, errors.E(errors.KindInvalidInput, op,
			fmt.Sprintf("unknown provider: %s", config.Provider))
	}

	return &Client{
		config:   config,
		endpoint: base + "/chat/completions",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retryConfig: &retry.Config{
			MaxAttempts:  config.MaxRetries + 1,
			BaseInterval: 2 * time.Second,
		},
		logger: logger,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// ===========================================================================
// Chat-completions wire types
// ===========================================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ===========================================================================
// Analysis
// ===========================================================================

// AnalyzeChunk reviews one chunk and returns its partial result.
//
// A transport or API error is returned to the caller; a response that is not
// valid JSON is not an error and degrades inside ParseChunkResult instead.
func (c *Client) AnalyzeChunk(ctx context.Context, pr review.PullRequest, ch chunk.Chunk) (aggregate.ChunkResult, error) {
	prompt := BuildPrompt(pr, ch.Files)
	c.logger.Debug("analyzing chunk %d: %d files, ~%d units",
		ch.ID, len(ch.Files), ch.EstimatedUnits)

	var text string
	err := retry.Do(ctx, c.retryConfig, func(ctx context.Context) error {
		var callErr error
		text, callErr = c.complete(ctx, prompt)
		return callErr
	})
	if err != nil {
		return aggregate.ChunkResult{}, err
	}

	return ParseChunkResult(ch.ID, text), nil
}

// complete performs one chat-completions round trip and returns the
// assistant message text.
func (c *Client) complete(ctx context.Context, userMessage string) (string, error) {
	const op = "ai.complete"

	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	})
	if err != nil {
		return "", errors.E(errors.KindInternal, op, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.E(errors.KindInternal, op, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.E(errors.KindNetwork, op, "analysis request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", errors.E(errors.KindNetwork, op, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.E(kindForStatus(resp.StatusCode), op,
			fmt.Sprintf("analysis API returned %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", errors.E(errors.KindParse, op, "malformed completion envelope", err)
	}
	if parsed.Error != nil {
		return "", errors.E(errors.KindInternal, op,
			fmt.Sprintf("analysis API error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", errors.E(errors.KindParse, op, "completion has no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func kindForStatus(status int) errors.Kind {
	switch status {
	case http.StatusUnauthorized:
		return errors.KindAuthentication
	case http.StatusForbidden:
		return errors.KindAuthorization
	case http.StatusNotFound:
		return errors.KindNotFound
	case http.StatusTooManyRequests:
		return errors.KindRateLimit
	default:
		return errors.KindInternal
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
