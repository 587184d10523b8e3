package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/reportcopilot/ai/openrouter"
	"github.com/teranos/reportcopilot/internal/util"
)

func TestLocalProvider_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req localRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 0.2, req.Temperature)
		assert.Equal(t, 800, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "usr", req.Messages[1].Content)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "hello"}}},
			"usage":   map[string]int{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	}))
	defer server.Close()

	lp := NewLocalProvider(LocalConfig{BaseURL: server.URL + "/", Model: "llama3", Temperature: 0.2, MaxTokens: util.Ptr(800)})
	resp, err := lp.Chat(context.Background(), openrouter.ChatRequest{SystemPrompt: "sys", UserPrompt: "usr"})
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 4, resp.Usage.TotalTokens)
	assert.Equal(t, "llama3", lp.ModelName())
}

func TestLocalProvider_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	lp := NewLocalProvider(LocalConfig{BaseURL: server.URL, Model: "missing"})
	_, err := lp.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "x"})

	var statusErr *openrouter.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestLocalProvider_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":""}}]}`))
	}))
	defer server.Close()

	lp := NewLocalProvider(LocalConfig{BaseURL: server.URL})
	_, err := lp.Chat(context.Background(), openrouter.ChatRequest{UserPrompt: "x"})
	assert.ErrorIs(t, err, openrouter.ErrEmptyResponse)
}

func TestLocalProvider_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	lp := NewLocalProvider(LocalConfig{BaseURL: server.URL})
	start := time.Now()
	_, err := lp.Chat(ctx, openrouter.ChatRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewLocalProvider_Defaults(t *testing.T) {
	lp := NewLocalProvider(LocalConfig{})
	assert.Equal(t, "http://localhost:11434", lp.baseURL)
	assert.Equal(t, openrouter.DefaultTimeout, lp.config.Timeout)
}
