package openrouter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportcopilot/ai/tracker"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/internal/httpclient"
	"github.com/teranos/reportcopilot/logger"
)

const (
	// DefaultModel is the fallback model when none is specified.
	// Matches am.DefaultModel.
	DefaultModel = "openai/gpt-4o-mini"

	// DefaultBaseURL is the OpenRouter API root
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultTemperature is used when the config leaves temperature unset
	DefaultTemperature = 0.2

	// DefaultTimeout bounds a single HTTP attempt
	DefaultTimeout = 45 * time.Second
)

// ErrEmptyResponse is returned when the model answers with no content
var ErrEmptyResponse = errors.New("Empty model response")

// Client is an OpenRouter chat completions client.
// Chat retries failed attempts with exponential backoff and records every
// call in ai_model_usage when a database is configured.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *httpclient.Client
	config       Config
	usageTracker *tracker.UsageTracker
	logger       *zap.SugaredLogger
	sleep        func(ctx context.Context, d time.Duration) error
}

// Config holds client configuration
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string        // "" = DefaultBaseURL
	Temperature  *float64      // nil = DefaultTemperature
	MaxTokens    *int          // nil = let the model decide
	Timeout      time.Duration // per attempt; 0 = DefaultTimeout
	MaxRetries   int           // attempts = MaxRetries + 1
	RetryBackoff time.Duration // delay before retry n is RetryBackoff * 2^n
	Logger       *zap.SugaredLogger
	DB           *sql.DB // usage tracking (nil = disabled)
	Verbosity    int
}

// NewClient creates a client, applying defaults for unset fields
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Temperature == nil {
		t := DefaultTemperature
		config.Temperature = &t
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	var usageTracker *tracker.UsageTracker
	if config.DB != nil {
		usageTracker = tracker.NewUsageTracker(config.DB, config.Verbosity)
	}

	return &Client{
		apiKey:       config.APIKey,
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		httpClient:   httpclient.New(config.Timeout, true),
		config:       config,
		usageTracker: usageTracker,
		logger:       logger.OrNop(config.Logger).With(logger.FieldProvider, "openrouter"),
		sleep:        sleepContext,
	}
}

// ChatRequest is a single system + user exchange
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // overrides the config
	MaxTokens    *int     // overrides the config
	Model        *string  // overrides the config

	// Usage tracking context
	JobID    string
	Step     string
	Template string
}

// ChatResponse is the model answer plus token usage
type ChatResponse struct {
	Content  string
	Usage    Usage
	Attempts int
}

// ChatCompletionRequest is the wire request for /chat/completions
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse is the wire response from /chat/completions
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage is token usage reported by the API
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StatusError is a non-200 API response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// CreateChatCompletion sends one request without retrying
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Title", "reportcopilot")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	return &chatResp, nil
}

// Chat sends the exchange, retrying retryable failures up to MaxRetries times.
// An empty answer counts as a failed attempt.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.apiKey == "" {
		return nil, errors.WithHint(errors.New("OpenRouter API key not configured"),
			"set llm.api_key in am.toml or LLM_API_KEY in the environment")
	}

	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := 0
	if c.config.MaxTokens != nil {
		maxTokens = *c.config.MaxTokens
	}
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	wire := ChatCompletionRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	log := c.logger.With(logger.FieldModel, model, logger.FieldStep, req.Step)
	if req.JobID != "" {
		log = log.With(logger.FieldJobID, req.JobID)
	}

	requestTime := time.Now()
	attempts := c.config.MaxRetries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := c.CreateChatCompletion(ctx, wire)
		if err == nil {
			content := ""
			if len(resp.Choices) > 0 {
				content = resp.Choices[0].Message.Content
			}
			if strings.TrimSpace(content) == "" {
				err = ErrEmptyResponse
			} else {
				if attempt > 0 {
					log.Infow("Request succeeded after retries", logger.FieldAttempt, attempt+1)
				}
				c.trackSuccess(req, requestTime, model, temperature, maxTokens, resp.Usage, attempt+1)
				return &ChatResponse{Content: content, Usage: resp.Usage, Attempts: attempt + 1}, nil
			}
		}

		lastErr = err
		log.Warnw("OpenRouter request failed",
			logger.FieldAttempt, attempt+1,
			"max_attempts", attempts,
			logger.FieldError, err)

		if ctx.Err() != nil || !isRetryableError(err) || attempt+1 >= attempts {
			break
		}

		delay := backoff(c.config.RetryBackoff, attempt)
		log.Debugw("Retrying OpenRouter request", "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	c.trackFailure(req, requestTime, model, temperature, maxTokens, lastErr, attempts)
	return nil, errors.Newf("LLM request failed after %d attempts: %s", attempts, errors.Describe(lastErr))
}

// Generate implements the plain system + user generation contract
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := c.Chat(ctx, ChatRequest{SystemPrompt: system, UserPrompt: user})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// backoff returns base * 2^attempt
func backoff(base time.Duration, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(2, float64(attempt)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryableError reports network failures, timeouts, 429, 5xx and empty answers
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"eof",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

func (c *Client) trackSuccess(req ChatRequest, requestTime time.Time, model string, temperature float64, maxTokens int, usage Usage, attempts int) {
	if c.usageTracker == nil {
		return
	}
	responseTime := time.Now()
	tokens := usage.TotalTokens
	cost := CalculateCost(model, usage.PromptTokens, usage.CompletionTokens)

	record := c.usageRecord(req, requestTime, model, temperature, maxTokens, attempts)
	record.ResponseTimestamp = &responseTime
	record.TokensUsed = &tokens
	record.Cost = &cost
	record.Success = true

	if err := c.usageTracker.TrackUsage(record); err != nil {
		// budget checks read these rows
		c.logger.Warnw("Failed to track usage", logger.FieldError, err, logger.FieldModel, model)
	}
}

func (c *Client) trackFailure(req ChatRequest, requestTime time.Time, model string, temperature float64, maxTokens int, err error, attempts int) {
	if c.usageTracker == nil {
		return
	}
	responseTime := time.Now()
	msg := err.Error()

	record := c.usageRecord(req, requestTime, model, temperature, maxTokens, attempts)
	record.ResponseTimestamp = &responseTime
	record.ErrorMessage = &msg

	if trackErr := c.usageTracker.TrackUsage(record); trackErr != nil {
		c.logger.Warnw("Failed to track failed request", logger.FieldError, trackErr, logger.FieldModel, model)
	}
}

func (c *Client) usageRecord(req ChatRequest, requestTime time.Time, model string, temperature float64, maxTokens int, attempts int) *tracker.ModelUsage {
	var maxTokensPtr *int
	if maxTokens > 0 {
		maxTokensPtr = &maxTokens
	}
	step := req.Step
	if step == "" {
		step = "chat"
	}
	return &tracker.ModelUsage{
		OperationType:    step,
		EntityType:       "report_job",
		EntityID:         req.JobID,
		ModelName:        model,
		ModelProvider:    "openrouter",
		ModelConfig:      tracker.NewModelConfig(&temperature, maxTokensPtr),
		RequestTimestamp: requestTime,
		Metadata:         tracker.NewUsageMetadata(tracker.UsageMetadata{Template: req.Template, Attempts: attempts}),
	}
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// SetHTTPClient overrides the HTTP client. Tests only: the replacement
// skips private address blocking.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.Wrap(client)
}
