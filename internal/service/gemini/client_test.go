package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xhttp "FinCast/pkg/http"
	"FinCast/pkg/logger"
)

func TestGenerate(t *testing.T) {
	var gotPath, gotKey, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Contents[0].Parts[0].Text
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Trend is flat. "},{"text":"Model is stable.\n"}]}}]}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "secret", BaseURL: srv.URL}, logger.Nop())
	text, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "Trend is flat. Model is stable.", text)
	assert.Equal(t, "/models/gemini-pro:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "hello", gotPrompt)
}

func TestGenerateErrors(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		_, err := New(Config{}, logger.Nop()).Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrNoAPIKey)
	})

	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"API key not valid"}}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		_, err := New(Config{APIKey: "k", BaseURL: srv.URL}, logger.Nop()).Generate(context.Background(), "p")
		var se *xhttp.StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadRequest, se.StatusCode)
		assert.Contains(t, err.Error(), "API key not valid")
	})

	t.Run("blocked", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
		}))
		defer srv.Close()

		_, err := New(Config{APIKey: "k", BaseURL: srv.URL}, logger.Nop()).Generate(context.Background(), "p")
		assert.ErrorIs(t, err, ErrEmptyResponse)
		assert.Contains(t, err.Error(), "SAFETY")
	})
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL}, logger.Nop())
	for i := 0; i < 5; i++ {
		_, err := c.Generate(context.Background(), "p")
		assert.Error(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "breaker stops calls after three failures")
}
