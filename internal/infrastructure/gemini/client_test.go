package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mystery-message-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(&config.Config{GeminiAPIURL: url, GeminiAPIKey: "test-key", GeminiTimeout: 2 * time.Second})
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"a?", "b?", "c?"}, Split(" a? || b? ||  || c? || d? "))
	assert.Equal(t, []string{}, Split("   "))
	assert.Equal(t, []string{"only one"}, Split("'only one'"))
}

func TestGenerate_ParsesCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "'||'")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Q1?||Q2?||Q3?||Q4?"}]}}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1?", "Q2?", "Q3?"}, got)
}

func TestGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerate_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background())
	assert.ErrorContains(t, err, "429")
}

func TestGenerate_MissingKey(t *testing.T) {
	c := NewClient(&config.Config{GeminiAPIURL: "http://unused", GeminiTimeout: time.Second})
	_, err := c.Generate(context.Background())
	assert.ErrorContains(t, err, "not configured")
}
