package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rrens/appstruct/internal/config"
	"github.com/Rrens/appstruct/internal/llm"
	"github.com/Rrens/appstruct/internal/llm/anthropic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) llm.Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return anthropic.NewProvider(config.AnthropicConfig{APIKey: "key", BaseURL: srv.URL}, 0)
}

func TestGenerate(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "system prompt", body["system"])
		assert.EqualValues(t, 1500, body["max_tokens"])

		fmt.Fprint(w, `{"model":"claude","content":[{"type":"text","text":"# Habit "},{"type":"text","text":"Tracker"}],"usage":{"input_tokens":10,"output_tokens":5}}`)
	})

	resp, err := p.Generate(context.Background(), llm.Request{System: "system prompt", Prompt: "idea", MaxTokens: 1500})
	require.NoError(t, err)
	assert.Equal(t, "# Habit Tracker", resp.Text)
	assert.Equal(t, 15, resp.TokensUsed)
	assert.Equal(t, "claude", resp.Model)
}

func TestGenerate_AuthFailure(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})
	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	assert.True(t, llm.IsKind(err, llm.KindAuthFailed))
}

func TestGenerateStream(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_start\ndata: {\"type\":\"content_block_start\"}\n\n")
		fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"# A\"}}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"pp\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	})

	var got []string
	err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(f string) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"# A", "pp"}, got)
}

func TestGenerateStream_InBandError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	})
	err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(string) error { return nil })
	assert.True(t, llm.IsKind(err, llm.KindRateLimited))
}

func TestGenerateStream_Truncated(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"# A\"}}\n\n")
	})
	err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(string) error { return nil })
	assert.True(t, llm.IsKind(err, llm.KindInvalidResponse), "got %v", err)
}
