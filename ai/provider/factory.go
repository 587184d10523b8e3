package provider

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/reportcopilot/ai/openrouter"
	"github.com/teranos/reportcopilot/am"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
)

// Provider names a generation backend
type Provider string

const (
	// ProviderLocal uses an OpenAI-compatible local server (Ollama, LocalAI)
	ProviderLocal Provider = am.ProviderLocal
	// ProviderOpenRouter uses the OpenRouter API
	ProviderOpenRouter Provider = am.ProviderOpenRouter
	// ProviderMock returns deterministic canned text without network calls
	ProviderMock Provider = am.ProviderMock
)

// AIClient is implemented by chat backends
type AIClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// ChatGenerator adapts an AIClient to Generator, forwarding the CallInfo
// attached to ctx so usage rows carry job and step
type ChatGenerator struct {
	Client AIClient
}

// Generate sends one exchange through the client
func (g ChatGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	info := CallFromContext(ctx)
	resp, err := g.Client.Chat(ctx, openrouter.ChatRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		JobID:        info.JobID,
		Step:         info.Step,
		Template:     info.Template,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// New builds the configured generator. db enables usage tracking for
// hosted backends and may be nil.
func New(cfg *am.Config, db *sql.DB, log *zap.SugaredLogger) (Generator, error) {
	log = logger.OrNop(log)

	p, err := ParseProvider(cfg.EffectiveProvider())
	if err != nil {
		return nil, err
	}

	var gen Generator
	switch p {
	case ProviderMock:
		gen = NewMock()
	case ProviderLocal:
		gen = ChatGenerator{Client: NewLocalProvider(LocalConfig{
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			Temperature: cfg.GetTemperature(),
			MaxTokens:   cfg.LLM.MaxTokens,
		})}
	case ProviderOpenRouter:
		if cfg.LLM.APIKey == "" {
			return nil, errors.WithHint(errors.New("llm.api_key is required for the openrouter provider"),
				"set LLM_API_KEY, or MOCK_LLM=1 for offline runs")
		}
		temperature := cfg.GetTemperature()
		gen = ChatGenerator{Client: openrouter.NewClient(openrouter.Config{
			APIKey:       cfg.LLM.APIKey,
			Model:        cfg.LLM.Model,
			Temperature:  &temperature,
			MaxTokens:    cfg.LLM.MaxTokens,
			Timeout:      time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			MaxRetries:   cfg.LLM.MaxRetries,
			RetryBackoff: time.Duration(cfg.LLM.RetryBackoffSeconds * float64(time.Second)),
			Logger:       log,
			DB:           db,
		})}
	}

	log.Debugw("Generation backend ready", logger.FieldProvider, string(p), logger.FieldModel, cfg.LLM.Model)
	return NewPaced(gen, cfg.LLM.CallsPerMinute), nil
}

// ParseProvider converts a config string to a Provider
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "local", "ollama", "localai":
		return ProviderLocal, nil
	case "openrouter", "or", "":
		return ProviderOpenRouter, nil
	case "mock":
		return ProviderMock, nil
	default:
		return "", errors.Newf("unknown provider: %s (valid: openrouter, local, mock)", s)
	}
}

var _ AIClient = (*openrouter.Client)(nil)
var _ AIClient = (*LocalProvider)(nil)
var _ Generator = ChatGenerator{}
