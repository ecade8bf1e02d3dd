package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rrens/appstruct/internal/llm"
	"github.com/Rrens/appstruct/internal/llm/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *openai.Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return openai.New(openai.Options{
		Name:    "openrouter",
		APIKey:  "sk-test",
		Model:   "openai/gpt-3.5-turbo",
		BaseURL: srv.URL,
		Headers: map[string]string{"X-Title": "AppStruct"},
	})
}

func TestGenerate(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "AppStruct", r.Header.Get("X-Title"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "openai/gpt-3.5-turbo", body["model"])
		assert.EqualValues(t, 4096, body["max_tokens"])
		msgs := body["messages"].([]any)
		if !assert.Len(t, msgs, 2) {
			return
		}
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

		fmt.Fprint(w, `{"model":"openai/gpt-3.5-turbo","choices":[{"message":{"content":"# Pet App Blueprint"}}],"usage":{"total_tokens":42}}`)
	})

	resp, err := p.Generate(context.Background(), llm.Request{System: "sys", Prompt: "idea", MaxTokens: 4096, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "# Pet App Blueprint", resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
}

func TestGenerate_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   llm.ErrorKind
	}{
		{http.StatusUnauthorized, `{"error":{"message":"Invalid API key sk-test"}}`, llm.KindAuthFailed},
		{http.StatusTooManyRequests, `{"error":"slow down"}`, llm.KindRateLimited},
		{http.StatusPaymentRequired, `{"error":"Insufficient credits"}`, llm.KindQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
			assert.True(t, llm.IsKind(err, tt.want), "got %v", err)
		})
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	})
	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	assert.True(t, llm.IsKind(err, llm.KindInvalidResponse))
}

func TestGenerateStream(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"# Pet\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" App\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	})

	var got []string
	err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(f string) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"# Pet", " App"}, got)
}

func TestGenerateStream_EmitErrorStops(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stop := fmt.Errorf("client gone")
	calls := 0
	err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestGenerateStream_AuthFailureBeforeStream(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	called := false
	err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(string) error {
		called = true
		return nil
	})
	assert.True(t, llm.IsKind(err, llm.KindAuthFailed))
	assert.False(t, called)
}

func TestGenerateStream_InBandError(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  llm.ErrorKind
	}{
		{"numeric code", `{"error":{"message":"Insufficient credits","code":402}}`, llm.KindQuotaExceeded},
		{"rate limited", `{"error":{"message":"Rate limit exceeded","code":429}}`, llm.KindRateLimited},
		{"string code", `{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key"}}`, llm.KindAuthFailed},
		{"no code", `{"error":{"message":"upstream exploded"}}`, llm.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprintf(w, "data: %s\n\n", tt.chunk)
				fmt.Fprint(w, "data: [DONE]\n\n")
			})

			calls := 0
			err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(string) error {
				calls++
				return nil
			})
			require.Error(t, err)
			assert.True(t, llm.IsKind(err, tt.want), "got %v", err)
			assert.Zero(t, calls)
		})
	}
}

func TestGenerateStream_Truncated(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"# Pet\"}}]}\n\n")
	})

	var got []string
	err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(f string) error {
		got = append(got, f)
		return nil
	})
	assert.True(t, llm.IsKind(err, llm.KindInvalidResponse), "got %v", err)
	assert.Equal(t, []string{"# Pet"}, got)
}

func TestGenerateStream_FinishReasonWithoutDone(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"# Pet\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
	})

	err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(string) error { return nil })
	assert.NoError(t, err)
}

func TestGenerateStream_OutlivesRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, part := range []string{"# Slow", " but", " complete"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
			w.(http.Flusher).Flush()
			time.Sleep(200 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	p := openai.New(openai.Options{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 200 * time.Millisecond})

	var got []string
	err := p.GenerateStream(context.Background(), llm.Request{Prompt: "x"}, func(f string) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"# Slow", " but", " complete"}, got)
}

func TestGenerate_RequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"late"}}]}`)
	}))
	t.Cleanup(srv.Close)

	p := openai.New(openai.Options{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 100 * time.Millisecond})
	_, err := p.Generate(context.Background(), llm.Request{Prompt: "x"})
	assert.True(t, llm.IsKind(err, llm.KindNetworkUnavailable), "got %v", err)
}

func TestIsConfigured(t *testing.T) {
	assert.False(t, openai.New(openai.Options{}).IsConfigured())
	assert.Equal(t, "openai", openai.New(openai.Options{}).Name())
}
