package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/appstruct/internal/config"
	"github.com/Rrens/appstruct/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	name         = "gemini"
	defaultModel = "gemini-2.5-flash"
)

var errFirstResponseTimeout = errors.New("no response before timeout")

// Provider implements llm.Provider on the Gemini SDK
type Provider struct {
	apiKey  string
	model   string
	timeout time.Duration
	opts    []option.ClientOption
}

// NewProvider creates a new Gemini provider. opts are appended after the API
// key, mainly to point the SDK at another endpoint.
func NewProvider(cfg config.GeminiConfig, timeout time.Duration, opts ...option.ClientOption) *Provider {
	return &Provider{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
		opts:    opts,
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return name
}

// DefaultModel returns the configured model or the package default
func (p *Provider) DefaultModel() string {
	if p.model != "" {
		return p.model
	}
	return defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

func (p *Provider) newModel(ctx context.Context, req llm.Request) (*genai.Client, *genai.GenerativeModel, string, error) {
	if !p.IsConfigured() {
		return nil, nil, "", &llm.ProviderError{Kind: llm.KindAuthFailed, Provider: name, Detail: "missing API key"}
	}

	model := req.Model
	if model == "" {
		model = p.DefaultModel()
	}

	opts := append([]option.ClientOption{option.WithAPIKey(p.apiKey)}, p.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to create gemini client: %w", err)
	}

	generativeModel := client.GenerativeModel(model)
	generativeModel.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		generativeModel.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		generativeModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	return client, generativeModel, model, nil
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

// Generate returns the text of the first candidate
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	client, generativeModel, model, err := p.newModel(ctx, req)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	start := time.Now()
	resp, err := generativeModel.GenerateContent(ctx, genai.Text(req.Prompt))
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return nil, classify(err)
	}

	output := collectText(resp)
	if output == "" {
		return nil, llm.NewInvalidResponse(name, "no text in candidates")
	}

	tokensUsed := 0
	if resp.UsageMetadata != nil {
		tokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &llm.Response{
		Text:       output,
		Model:      model,
		TokensUsed: tokensUsed,
		LatencyMs:  latency,
	}, nil
}

// GenerateStream forwards candidate text as it arrives. The timeout only
// bounds the wait for the first response; after that ctx alone applies.
func (p *Provider) GenerateStream(ctx context.Context, req llm.Request, emit llm.EmitFunc) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	client, generativeModel, _, err := p.newModel(ctx, req)
	if err != nil {
		return err
	}
	defer client.Close()

	var firstResponse *time.Timer
	if p.timeout > 0 {
		firstResponse = time.AfterFunc(p.timeout, func() { cancel(errFirstResponseTimeout) })
	}

	iter := generativeModel.GenerateContentStream(ctx, genai.Text(req.Prompt))
	for {
		resp, err := iter.Next()
		if firstResponse != nil {
			firstResponse.Stop()
		}
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			if errors.Is(context.Cause(ctx), errFirstResponseTimeout) {
				return &llm.ProviderError{Kind: llm.KindNetworkUnavailable, Provider: name, Detail: "timeout", Err: err}
			}
			return classify(err)
		}

		if fragment := collectText(resp); fragment != "" {
			if err := emit(fragment); err != nil {
				return err
			}
		}
	}
}

// collectText joins the text parts of the first candidate
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var output strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			output.WriteString(string(text))
		}
	}
	return output.String()
}
