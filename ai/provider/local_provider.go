package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teranos/reportcopilot/ai/openrouter"
	"github.com/teranos/reportcopilot/am"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/internal/httpclient"
)

// LocalConfig configures a local inference server
type LocalConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   *int
}

// LocalProvider talks to Ollama, LocalAI, or any OpenAI-compatible local endpoint.
// Calls are not retried; local servers fail fast or not at all.
type LocalProvider struct {
	baseURL    string
	config     LocalConfig
	httpClient *httpclient.Client
}

// NewLocalProvider creates a provider for local inference
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = am.DefaultLocalBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = openrouter.DefaultTimeout
	}
	return &LocalProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		httpClient: httpclient.New(cfg.Timeout, false),
	}
}

type localRequest struct {
	Model       string           `json:"model"`
	Messages    []localMessage   `json:"messages"`
	Stream      bool             `json:"stream"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Options     *localOllamaOpts `json:"options,omitempty"`
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// localOllamaOpts repeats sampling settings in Ollama's native option names
type localOllamaOpts struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type localResponse struct {
	Choices []struct {
		Message      localMessage `json:"message"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
	Usage *openrouter.Usage `json:"usage,omitempty"`
}

// Chat implements AIClient against /v1/chat/completions
func (lp *LocalProvider) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	temperature := lp.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := 0
	if lp.config.MaxTokens != nil {
		maxTokens = *lp.config.MaxTokens
	}
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	model := lp.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	body, err := json.Marshal(localRequest{
		Model: model,
		Messages: []localMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Options:     &localOllamaOpts{Temperature: temperature, NumPredict: maxTokens},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, lp.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := lp.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "local inference request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, &openrouter.StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var completion localResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, openrouter.ErrEmptyResponse
	}

	out := &openrouter.ChatResponse{Content: completion.Choices[0].Message.Content, Attempts: 1}
	if completion.Usage != nil {
		out.Usage = *completion.Usage
	}
	return out, nil
}

// ModelName returns the configured local model
func (lp *LocalProvider) ModelName() string {
	return lp.config.Model
}
