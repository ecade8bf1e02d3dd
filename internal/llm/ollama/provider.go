package ollama

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
	name         = "ollama"
	defaultModel = "llama3"
)

var errDone = errors.New("generation done")

// Provider implements llm.Provider for Ollama
type Provider struct {
	host         string
	defaultModel string
	client       *http.Client
	streamClient *http.Client
}

// NewProvider creates a new Ollama provider
func NewProvider(cfg config.OllamaConfig, timeout time.Duration) llm.Provider {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultModel
	}
	// local models are slow; keep the longer ceiling
	if timeout < 300*time.Second {
		timeout = 300 * time.Second
	}
	return &Provider{
		host:         strings.TrimRight(cfg.Host, "/"),
		defaultModel: cfg.DefaultModel,
		client:       llm.NewHTTPClient(timeout),
		streamClient: llm.NewStreamingHTTPClient(timeout),
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

// IsConfigured checks if a host is set
func (p *Provider) IsConfigured() bool {
	return p.host != ""
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
	Error     string `json:"error"`
}

func (p *Provider) newRequest(ctx context.Context, req llm.Request, stream bool) (*http.Request, string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	body, err := json.Marshal(ollamaRequest{
		Model:   model,
		Prompt:  req.Prompt,
		System:  req.System,
		Stream:  stream,
		Options: options,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, model, nil
}

// Generate returns the full completion
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

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, llm.NewInvalidResponse(name, "decode: "+err.Error())
	}
	if ollamaResp.Error != "" {
		return nil, &llm.ProviderError{Kind: llm.KindUnknown, Provider: name, Detail: ollamaResp.Error}
	}
	if ollamaResp.Response == "" {
		return nil, llm.NewInvalidResponse(name, "empty response")
	}

	if ollamaResp.Model != "" {
		model = ollamaResp.Model
	}

	return &llm.Response{
		Text:       ollamaResp.Response,
		Model:      model,
		TokensUsed: ollamaResp.EvalCount,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// GenerateStream reads the NDJSON stream until a chunk reports done
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
	err = llm.ReadLines(resp.Body, func(line []byte) error {
		var chunk ollamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			streamErr = llm.NewInvalidResponse(name, "decode chunk: "+err.Error())
			return streamErr
		}
		if chunk.Error != "" {
			streamErr = &llm.ProviderError{Kind: llm.KindUnknown, Provider: name, Detail: chunk.Error}
			return streamErr
		}
		if chunk.Response != "" {
			if emitErr = emit(chunk.Response); emitErr != nil {
				return emitErr
			}
		}
		if chunk.Done {
			return errDone
		}
		return nil
	})

	switch {
	case errors.Is(err, errDone):
		return nil
	case err == nil:
		return llm.NewInvalidResponse(name, "stream ended before done")
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
