package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/appstruct/internal/llm"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	doneMarker     = "[DONE]"
)

var errDone = errors.New("stream done")

// Options configures a provider speaking the OpenAI chat-completions format
type Options struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string
	// Headers are added to every request
	Headers map[string]string
	// Timeout bounds whole-response calls; streams only wait this long for headers
	Timeout time.Duration
	// Client replaces both the whole-response and the streaming client
	Client *http.Client
}

// Provider implements llm.Provider for OpenAI-compatible APIs
type Provider struct {
	name         string
	apiKey       string
	defaultModel string
	baseURL      string
	headers      map[string]string
	client       *http.Client
	streamClient *http.Client
}

// New creates a provider from opts
func New(opts Options) *Provider {
	if opts.Name == "" {
		opts.Name = "openai"
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	client, streamClient := opts.Client, opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = llm.NewHTTPClient(timeout)
		streamClient = llm.NewStreamingHTTPClient(timeout)
	}
	return &Provider{
		name:         opts.Name,
		apiKey:       opts.APIKey,
		defaultModel: opts.Model,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		headers:      opts.Headers,
		client:       client,
		streamClient: streamClient,
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return p.name
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *chunkError `json:"error"`
}

// chunkError is an in-band failure sent after the 200 status line. OpenRouter
// reports the HTTP-equivalent status as a numeric code, OpenAI as a string.
type chunkError struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    json.RawMessage `json:"code"`
}

func (e *chunkError) classify(provider string) *llm.ProviderError {
	// string codes leave status at zero
	var status int
	_ = json.Unmarshal(e.Code, &status)
	detail := strings.Join(strings.Fields(e.Type+" "+strings.Trim(string(e.Code), `"`)+" "+e.Message), " ")
	switch {
	case status != 0:
	case strings.Contains(detail, "invalid_api_key"), strings.Contains(detail, "authentication"):
		status = http.StatusUnauthorized
	case strings.Contains(detail, "rate_limit"):
		status = http.StatusTooManyRequests
	}
	return llm.ClassifyStatus(provider, status, detail)
}

func (p *Provider) newRequest(ctx context.Context, req llm.Request, stream bool) (*http.Request, string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, model, nil
}

// Generate returns the complete assistant message
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	httpReq, model, err := p.newRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, llm.ClassifyTransport(p.name, err)
	}
	defer resp.Body.Close()

	if err := llm.CheckResponse(p.name, resp); err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, llm.NewInvalidResponse(p.name, "decode: "+err.Error())
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return nil, llm.NewInvalidResponse(p.name, "no message content in response")
	}

	if chatResp.Model != "" {
		model = chatResp.Model
	}

	return &llm.Response{
		Text:       chatResp.Choices[0].Message.Content,
		Model:      model,
		TokensUsed: chatResp.Usage.TotalTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// GenerateStream forwards each delta.content fragment until the [DONE] marker
func (p *Provider) GenerateStream(ctx context.Context, req llm.Request, emit llm.EmitFunc) error {
	httpReq, _, err := p.newRequest(ctx, req, true)
	if err != nil {
		return err
	}

	resp, err := p.streamClient.Do(httpReq)
	if err != nil {
		return llm.ClassifyTransport(p.name, err)
	}
	defer resp.Body.Close()

	if err := llm.CheckResponse(p.name, resp); err != nil {
		return err
	}

	var emitErr, streamErr error
	finished := false
	err = llm.ReadSSE(resp.Body, func(ev llm.SSEEvent) error {
		if strings.TrimSpace(ev.Data) == doneMarker {
			return errDone
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			// Some gateways interleave non-JSON status lines.
			return nil
		}
		if chunk.Error != nil {
			streamErr = chunk.Error.classify(p.name)
			return streamErr
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finished = true
			}
			if choice.Delta.Content == "" {
				continue
			}
			if emitErr = emit(choice.Delta.Content); emitErr != nil {
				return emitErr
			}
		}
		return nil
	})

	switch {
	case errors.Is(err, errDone):
		return nil
	case err == nil && finished:
		return nil
	case err == nil:
		return llm.NewInvalidResponse(p.name, "stream ended without [DONE]")
	case emitErr != nil:
		return emitErr
	case streamErr != nil:
		return streamErr
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return llm.ClassifyTransport(p.name, err)
	}
}
