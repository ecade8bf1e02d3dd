package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/appstruct/internal/config"
	"github.com/Rrens/appstruct/internal/llm"
)

const (
	name           = "anthropic"
	apiVersion     = "2023-06-01"
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-3-5-haiku-latest"
)

var errStop = errors.New("message stop")

// Provider implements llm.Provider for Anthropic
type Provider struct {
	apiKey       string
	defaultModel string
	client       *http.Client
	streamClient *http.Client
	baseURL      string
}

// NewProvider creates a new Anthropic provider
func NewProvider(cfg config.AnthropicConfig, timeout time.Duration) llm.Provider {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Provider{
		apiKey:       cfg.APIKey,
		defaultModel: cfg.Model,
		client:       llm.NewHTTPClient(timeout),
		streamClient: llm.NewStreamingHTTPClient(timeout),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return name
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) newRequest(ctx context.Context, req llm.Request, stream bool) (*http.Request, string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	return httpReq, model, nil
}

// Generate returns the concatenated text blocks of the reply
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	httpReq, model, err := p.newRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, llm.ClassifyTransport(name, err)
	}
	defer resp.Body.Close()

	if err := llm.CheckResponse(name, resp); err != nil {
		return nil, err
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return nil, llm.NewInvalidResponse(name, "decode: "+err.Error())
	}

	var text strings.Builder
	for _, block := range anthropicResp.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, llm.NewInvalidResponse(name, "no text content in response")
	}

	if anthropicResp.Model != "" {
		model = anthropicResp.Model
	}

	return &llm.Response{
		Text:       text.String(),
		Model:      model,
		TokensUsed: anthropicResp.Usage.InputTokens + anthropicResp.Usage.OutputTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// GenerateStream forwards text_delta fragments until message_stop
func (p *Provider) GenerateStream(ctx context.Context, req llm.Request, emit llm.EmitFunc) error {
	httpReq, _, err := p.newRequest(ctx, req, true)
	if err != nil {
		return err
	}

	resp, err := p.streamClient.Do(httpReq)
	if err != nil {
		return llm.ClassifyTransport(name, err)
	}
	defer resp.Body.Close()

	if err := llm.CheckResponse(name, resp); err != nil {
		return err
	}

	var emitErr, streamErr error
	err = llm.ReadSSE(resp.Body, func(ev llm.SSEEvent) error {
		var se streamEvent
		if err := json.Unmarshal([]byte(ev.Data), &se); err != nil {
			return nil
		}
		if se.Type == "" {
			se.Type = ev.Event
		}

		switch se.Type {
		case "content_block_delta":
			if se.Delta.Text == "" {
				return nil
			}
			if emitErr = emit(se.Delta.Text); emitErr != nil {
				return emitErr
			}
		case "message_stop":
			return errStop
		case "error":
			streamErr = classifyStreamError(se.Error.Type, se.Error.Message)
			return streamErr
		}
		return nil
	})

	switch {
	case errors.Is(err, errStop):
		return nil
	case err == nil:
		return llm.NewInvalidResponse(name, "stream ended without message_stop")
	case emitErr != nil:
		return emitErr
	case streamErr != nil:
		return streamErr
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return llm.ClassifyTransport(name, err)
	}
}

// classifyStreamError maps an in-band error event, which arrives after a 200
func classifyStreamError(errType, message string) error {
	kind := llm.KindUnknown
	switch errType {
	case "authentication_error", "permission_error":
		kind = llm.KindAuthFailed
	case "rate_limit_error", "overloaded_error":
		kind = llm.KindRateLimited
	case "billing_error":
		kind = llm.KindQuotaExceeded
	}
	return &llm.ProviderError{Kind: kind, Provider: name, Detail: errType + ": " + message}
}
