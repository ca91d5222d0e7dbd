package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/bito-analyst/internal/domain/ai"
)

func TestCompleteJoinsTextBlocks(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
			"content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewClient("k", "", 256, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	out, err := c.Complete(context.Background(), ai.Request{System: "be terse", User: "hi", Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)

	assert.Equal(t, "claude-sonnet-4-5", body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
	assert.InDelta(t, 0.3, body["temperature"], 0.0001)
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
}

func TestCompleteQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	c := NewClient("k", "", 0, option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := c.Complete(context.Background(), ai.Request{User: "hi"})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
}
