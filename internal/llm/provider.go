package llm

import "context"

// Request contains a fully built generation request
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// Model overrides the provider default when set
	Model string
}

// Response contains LLM generation result
type Response struct {
	Text       string
	Model      string
	TokensUsed int
	LatencyMs  int64
}

// EmitFunc receives stream fragments in arrival order. Returning an error
// stops the stream and aborts the upstream request.
type EmitFunc func(fragment string) error

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// DefaultModel returns the default model
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Generate blocks until the complete text is available
	Generate(ctx context.Context, req Request) (*Response, error)

	// GenerateStream forwards each text fragment to emit as it arrives and
	// returns when the provider signals completion
	GenerateStream(ctx context.Context, req Request, emit EmitFunc) error
}

// ProviderFactory creates a new provider instance
type ProviderFactory func() Provider
