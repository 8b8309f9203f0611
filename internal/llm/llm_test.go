package llm

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

	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/internal/models"
)

func TestOllama_Generate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","response":"SELECT * FROM employees;","done":true}`))
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "m", 0.1, time.Second)
	out, err := c.Generate(context.Background(), "prompt text")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM employees;", out)
	assert.Equal(t, "prompt text", got.Prompt)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.1, got.Options["temperature"], 1e-9)
}

func TestOllama_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"model not found"}`, "model not found"},
		{"missing field", http.StatusOK, `{"done":true}`, "response field missing"},
		{"not json", http.StatusOK, `<html>`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOllama(srv.URL, "m", 0, time.Second).Generate(context.Background(), "p")
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrLLMUnavailable))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestOllama_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllama(url, "m", 0, time.Second).Generate(context.Background(), "p")
	assert.True(t, errors.Is(err, models.ErrLLMUnavailable))
}

func TestScripted(t *testing.T) {
	s := NewScripted("one", "two")
	ctx := context.Background()
	for _, want := range []string{"one", "two", "two"} {
		got, err := s.Generate(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Len(t, s.Prompts(), 3)

	s.Err = errors.New("offline")
	_, err := s.Generate(ctx, "p")
	assert.True(t, errors.Is(err, models.ErrLLMUnavailable))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.LLMConfig{Provider: "nope"})
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))

	c, err := New(context.Background(), config.LLMConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, c)
}
